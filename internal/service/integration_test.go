package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/clock"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/fanout"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/repository"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/service"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/testutil"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/ticket"
)

type pgStack struct {
	pool   *pgxpool.Pool
	events *service.EventService
	regs   *service.RegistrationService
	inbox  *service.InboxService
	notes  *fanout.Dispatcher
}

var (
	pgOrganizer = model.Actor{ID: "org-1", Role: model.RoleOrganizer}
	pgAdmin     = model.Actor{ID: "admin-1", Role: model.RoleAdmin}
)

func newPGStack(t *testing.T) *pgStack {
	t.Helper()
	pool := testutil.NewTestPool(t)
	testutil.TruncateAll(t, context.Background(), pool)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewSystem()
	tx := repository.NewTxManager(pool)
	eventRepo := repository.NewEventRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool)
	noteRepo := repository.NewNotificationRepository(pool)

	dispatcher := fanout.NewDispatcher(logger, fanout.Options{Workers: 2, QueueSize: 256, MaxAttempts: 2, RetryDelay: 10 * time.Millisecond},
		fanout.NewInboxSink(noteRepo))
	dispatcher.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Close(ctx)
	})

	return &pgStack{
		pool: pool,
		events: service.NewEventService(service.EventDeps{
			Tx: tx, Events: eventRepo, Registrations: regRepo, Publisher: dispatcher, Clock: clk, Logger: logger,
		}),
		regs: service.NewRegistrationService(service.RegistrationDeps{
			Tx: tx, Events: eventRepo, Registrations: regRepo, Issuer: ticket.NewIssuer(), Publisher: dispatcher, Clock: clk, Logger: logger,
		}),
		inbox: service.NewInboxService(noteRepo, clk),
		notes: dispatcher,
	}
}

func (s *pgStack) pendingEvent(t *testing.T, capacity int) *model.Event {
	t.Helper()
	ctx := context.Background()
	e, err := s.events.Create(ctx, pgOrganizer, service.EventInput{
		Title:       "Career Fair",
		Description: "Meet employers",
		Location:    "Main Hall",
		StartsAt:    time.Now().Add(72 * time.Hour),
		Capacity:    capacity,
	})
	require.NoError(t, err)
	_, err = s.events.Submit(ctx, pgOrganizer, e.ID)
	require.NoError(t, err)
	return e
}

func (s *pgStack) activeEvent(t *testing.T, capacity int) *model.Event {
	t.Helper()
	e := s.pendingEvent(t, capacity)
	e, err := s.events.Approve(context.Background(), pgAdmin, e.ID)
	require.NoError(t, err)
	return e
}

func (s *pgStack) countActive(t *testing.T, eventID string) int {
	t.Helper()
	var n int
	require.NoError(t, s.pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status <> 'cancelled'`, eventID).Scan(&n))
	return n
}

func TestPostgresConcurrentEnrollRespectsCapacity(t *testing.T) {
	s := newPGStack(t)

	for _, capacity := range []int{1, 5} {
		e := s.activeEvent(t, capacity)

		const students = 12
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			full    int
		)
		start := make(chan struct{})
		for i := 0; i < students; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				res, err := s.regs.Enroll(context.Background(), model.Actor{ID: fmt.Sprintf("stu-%d", i), Role: model.RoleStudent}, e.ID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil && res.Created:
					created++
				case errors.Is(err, model.ErrEventFull):
					full++
				default:
					t.Errorf("unexpected enroll result: %+v %v", res, err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		assert.Equal(t, capacity, created)
		assert.Equal(t, students-capacity, full)
		assert.Equal(t, capacity, s.countActive(t, e.ID))
	}
}

func TestPostgresConcurrentDuplicateEnroll(t *testing.T) {
	s := newPGStack(t)
	e := s.activeEvent(t, 10)
	stu := model.Actor{ID: "stu-1", Role: model.RoleStudent}

	var wg sync.WaitGroup
	tokens := make([]string, 6)
	start := make(chan struct{})
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := s.regs.Enroll(context.Background(), stu, e.ID)
			if assert.NoError(t, err) {
				tokens[i] = res.Registration.QRToken
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for _, tok := range tokens {
		assert.Equal(t, tokens[0], tok)
	}
	assert.Equal(t, 1, s.countActive(t, e.ID))
}

func TestPostgresApproveRejectRace(t *testing.T) {
	s := newPGStack(t)

	for round := 0; round < 5; round++ {
		e := s.pendingEvent(t, 10)

		var (
			wg   sync.WaitGroup
			errs [2]error
		)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, errs[0] = s.events.Approve(context.Background(), pgAdmin, e.ID)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, errs[1] = s.events.Reject(context.Background(), model.Actor{ID: "admin-2", Role: model.RoleAdmin}, e.ID, "overlaps finals")
		}()
		close(start)
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, model.ErrStaleModerationState)
		}
		assert.Equal(t, 1, succeeded)
	}
}

func TestPostgresSubmitRacesEdit(t *testing.T) {
	s := newPGStack(t)
	ctx := context.Background()
	in := service.EventInput{
		Title:       "Career Fair",
		Description: "Meet employers",
		Location:    "Main Hall",
		StartsAt:    time.Now().Add(72 * time.Hour),
		Capacity:    10,
	}

	for round := 0; round < 10; round++ {
		e, err := s.events.Create(ctx, pgOrganizer, in)
		require.NoError(t, err)

		cleared := in
		cleared.Location = ""
		var (
			wg                   sync.WaitGroup
			submitErr, updateErr error
		)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, submitErr = s.events.Submit(ctx, pgOrganizer, e.ID)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, updateErr = s.events.Update(ctx, pgOrganizer, e.ID, cleared)
		}()
		close(start)
		wg.Wait()

		got, err := s.events.Get(ctx, pgOrganizer, e.ID)
		require.NoError(t, err)
		if got.Status == model.EventPendingReview {
			require.NoError(t, submitErr)
			assert.ErrorIs(t, updateErr, model.ErrEventNotEditable)
			assert.Equal(t, "Main Hall", got.Location)
		} else {
			assert.ErrorIs(t, submitErr, model.ErrIncompleteEvent)
			require.NoError(t, updateErr)
			assert.Equal(t, model.EventDraft, got.Status)
		}
	}
}

func TestPostgresCheckInLifecycle(t *testing.T) {
	s := newPGStack(t)
	e := s.activeEvent(t, 1)
	ctx := context.Background()
	stu := model.Actor{ID: "stu-1", Role: model.RoleStudent}

	res, err := s.regs.Enroll(ctx, stu, e.ID)
	require.NoError(t, err)

	first, err := s.regs.CheckIn(ctx, pgOrganizer, e.ID, "ticket: "+res.Registration.QRToken)
	require.NoError(t, err)
	second, err := s.regs.CheckIn(ctx, pgOrganizer, e.ID, res.Registration.QRToken)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCheckedIn)
	assert.True(t, first.Registration.CheckedInAt.Equal(*second.Registration.CheckedInAt))

	_, err = s.regs.Cancel(ctx, stu, res.Registration.ID)
	assert.ErrorIs(t, err, model.ErrCannotCancelAfterCheckIn)

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.notes.Close(flushCtx))

	inbox, err := s.inbox.List(ctx, stu, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.NotifyRegistrationConfirmed, inbox[0].Type)
}
