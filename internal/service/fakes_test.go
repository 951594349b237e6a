package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

// store is an in-memory stand-in for Postgres. WithTx holds txMu for the
// whole unit of work, which plays the part of the event row lock.
type store struct {
	txMu sync.Mutex

	mu            sync.Mutex
	events        map[string]model.Event
	registrations map[string]model.Registration
	favorites     map[string]map[string]bool

	// casHook runs inside CompareAndSetStatus before the comparison.
	casHook func()
	// failStats makes Stats fail.
	failStats error
}

func newStore() *store {
	return &store{
		events:        make(map[string]model.Event),
		registrations: make(map[string]model.Registration),
		favorites:     make(map[string]map[string]bool),
	}
}

func (s *store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

func (s *store) put(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

func (s *store) putRegistration(r model.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations[r.ID] = r
}

func (s *store) event(id string) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

func (s *store) registration(id string) model.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registrations[id]
}

func (s *store) activeCount(eventID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(eventID)
}

func (s *store) countLocked(eventID string) int {
	n := 0
	for _, r := range s.registrations {
		if r.EventID == eventID && r.Active() {
			n++
		}
	}
	return n
}

func (s *store) withCount(e model.Event) *model.Event {
	e.RegisteredCount = s.countLocked(e.ID)
	return &e
}

// EventStore

func (s *store) Create(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = *e
	return nil
}

func (s *store) GetByID(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return s.withCount(e), nil
}

func (s *store) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	return s.GetByID(ctx, id)
}

func (s *store) List(_ context.Context, f model.EventFilter) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Event
	for _, e := range s.events {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.OrganizerID != "" && e.OrganizerID != f.OrganizerID {
			continue
		}
		out = append(out, *s.withCount(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *store) ListByIDs(_ context.Context, ids []string) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Event
	for _, id := range ids {
		if e, ok := s.events[id]; ok {
			out = append(out, *s.withCount(e))
		}
	}
	return out, nil
}

func (s *store) UpdateContent(_ context.Context, e *model.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[e.ID]
	if !ok || !cur.Status.Editable() {
		return false, nil
	}
	cur.Title, cur.Description, cur.Location, cur.Category = e.Title, e.Description, e.Location, e.Category
	cur.StartsAt, cur.Capacity, cur.UpdatedAt = e.StartsAt, e.Capacity, e.UpdatedAt
	s.events[e.ID] = cur
	return true, nil
}

func (s *store) CompareAndSetStatus(_ context.Context, id string, from, to model.EventStatus, reason string, at time.Time) (bool, error) {
	if s.casHook != nil {
		s.casHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[id]
	if !ok || cur.Status != from {
		return false, nil
	}
	cur.Status, cur.RejectionReason, cur.UpdatedAt = to, reason, at
	s.events[id] = cur
	return true, nil
}

func (s *store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.events, id)
	for rid, r := range s.registrations {
		if r.EventID == id {
			delete(s.registrations, rid)
		}
	}
	return nil
}

// registrations is the RegistrationStore view of the same data.
type registrations struct{ *store }

func (r registrations) CountActive(_ context.Context, eventID string) (int, error) {
	return r.activeCount(eventID), nil
}

func (r registrations) FindActive(_ context.Context, eventID, studentID string) (*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.registrations {
		if reg.EventID == eventID && reg.StudentID == studentID && reg.Active() {
			return &reg, nil
		}
	}
	return nil, nil
}

func (r registrations) Create(_ context.Context, reg *model.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.registrations {
		if cur.EventID == reg.EventID && cur.StudentID == reg.StudentID && cur.Active() {
			return model.ErrAlreadyRegistered
		}
	}
	r.registrations[reg.ID] = *reg
	return nil
}

func (r registrations) GetByID(_ context.Context, id string) (*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &reg, nil
}

func (r registrations) GetForUpdate(ctx context.Context, id string) (*model.Registration, error) {
	return r.GetByID(ctx, id)
}

func (r registrations) GetByTokenForUpdate(_ context.Context, token string) (*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.registrations {
		if reg.QRToken == token {
			return &reg, nil
		}
	}
	return nil, model.ErrNotFound
}

func (r registrations) MarkCheckedIn(_ context.Context, id string, at time.Time) (bool, error) {
	return r.move(id, model.RegistrationCheckedIn, at), nil
}

func (r registrations) MarkCancelled(_ context.Context, id string, at time.Time) (bool, error) {
	return r.move(id, model.RegistrationCancelled, at), nil
}

func (r registrations) move(id string, to model.RegistrationStatus, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	if !ok || reg.Status != model.RegistrationConfirmed {
		return false
	}
	reg.Status = to
	if to == model.RegistrationCheckedIn {
		reg.CheckedInAt = &at
	} else {
		reg.CancelledAt = &at
	}
	r.registrations[id] = reg
	return true
}

func (r registrations) CancelConfirmed(_ context.Context, eventID string, at time.Time) ([]model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Registration
	for id, reg := range r.registrations {
		if reg.EventID == eventID && reg.Status == model.RegistrationConfirmed {
			reg.Status = model.RegistrationCancelled
			reg.CancelledAt = &at
			r.registrations[id] = reg
			out = append(out, reg)
		}
	}
	return out, nil
}

func (r registrations) ListByEvent(_ context.Context, eventID string) ([]model.Registration, error) {
	return r.filter(func(reg model.Registration) bool { return reg.EventID == eventID }), nil
}

func (r registrations) ListByStudent(_ context.Context, studentID string) ([]model.Registration, error) {
	return r.filter(func(reg model.Registration) bool { return reg.StudentID == studentID }), nil
}

func (r registrations) filter(keep func(model.Registration) bool) []model.Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Registration
	for _, reg := range r.registrations {
		if keep(reg) {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r registrations) Stats(_ context.Context, eventID string) (model.EventStats, error) {
	if r.failStats != nil {
		return model.EventStats{}, r.failStats
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st := model.EventStats{EventID: eventID}
	for _, reg := range r.registrations {
		if reg.EventID != eventID {
			continue
		}
		switch reg.Status {
		case model.RegistrationConfirmed:
			st.Registered++
		case model.RegistrationCheckedIn:
			st.Registered++
			st.CheckedIn++
		case model.RegistrationCancelled:
			st.Cancelled++
		}
	}
	return st, nil
}

// favorites is the FavoriteStore view of the same data.
type favorites struct{ *store }

func (f favorites) Toggle(_ context.Context, studentID, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.store.favorites[studentID]
	if set == nil {
		set = make(map[string]bool)
		f.store.favorites[studentID] = set
	}
	if set[eventID] {
		delete(set, eventID)
		return false, nil
	}
	set[eventID] = true
	return true, nil
}

func (f favorites) IsFavorite(_ context.Context, studentID, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.favorites[studentID][eventID], nil
}

func (f favorites) List(_ context.Context, studentID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.store.favorites[studentID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f favorites) Remove(_ context.Context, studentID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.store.favorites[studentID], eventID)
	return nil
}

// recordingPublisher captures published notifications.
type recordingPublisher struct {
	mu    sync.Mutex
	notes []model.Notification
}

func (p *recordingPublisher) Publish(notes ...model.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, notes...)
}

func (p *recordingPublisher) published() []model.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Notification(nil), p.notes...)
}

func (p *recordingPublisher) types() []model.NotificationType {
	var out []model.NotificationType
	for _, n := range p.published() {
		out = append(out, n.Type)
	}
	return out
}

// fakeInbox is an in-memory NotificationStore.
type fakeInbox struct {
	mu    sync.Mutex
	notes []model.Notification
}

func (f *fakeInbox) ListByRecipient(_ context.Context, recipientID string, limit int) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.notes {
		if n.RecipientID == recipientID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeInbox) MarkRead(_ context.Context, recipientID, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notes {
		if n.ID == id && n.RecipientID == recipientID {
			if n.ReadAt == nil {
				f.notes[i].ReadAt = &at
			}
			return nil
		}
	}
	return model.ErrNotFound
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
