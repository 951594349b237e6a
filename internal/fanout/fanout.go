// Package fanout delivers notifications after the primary transition has
// committed. Delivery is best effort: a failing sink is retried a few times
// and then logged, and nothing ever flows back to the caller that produced
// the notification.
package fanout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

// Sink is one delivery target, such as the inbox table or a broker.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n model.Notification) error
}

// Options tunes the dispatcher.
type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	return o
}

type job struct {
	sink Sink
	n    model.Notification
}

// Dispatcher is an in-process post-commit queue with a worker pool.
type Dispatcher struct {
	sinks  []Sink
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
	stop   context.CancelFunc
}

// NewDispatcher builds a dispatcher delivering to every sink.
func NewDispatcher(logger *slog.Logger, opts Options, sinks ...Sink) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		sinks:  sinks,
		opts:   opts,
		logger: logger.With("component", "fanout"),
		now:    func() time.Time { return time.Now().UTC() },
		queue:  make(chan job, opts.QueueSize),
	}
}

// Start launches the workers. They run until Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.stop = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Publish enqueues notifications without blocking. When the queue is full or
// the dispatcher is closed the notification is dropped and logged.
func (d *Dispatcher) Publish(notes ...model.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, n := range notes {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = d.now()
		}
		for _, s := range d.sinks {
			if d.closed {
				d.logger.Warn("notification dropped, dispatcher closed",
					"sink", s.Name(), "type", n.Type, "recipient", n.RecipientID)
				continue
			}
			select {
			case d.queue <- job{sink: s, n: n}:
			default:
				d.logger.Warn("notification dropped, queue full",
					"sink", s.Name(), "type", n.Type, "recipient", n.RecipientID)
			}
		}
	}
}

// Close stops intake and waits for queued jobs to finish. If ctx expires
// first, in-flight retries are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if d.stop != nil {
			d.stop()
		}
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(ctx, j)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	var err error
retry:
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if err = j.sink.Deliver(ctx, j.n); err == nil {
			return
		}
		if attempt == d.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break retry
		case <-time.After(d.opts.RetryDelay * time.Duration(attempt)):
		}
	}
	d.logger.Error("notification delivery failed",
		"sink", j.sink.Name(), "type", j.n.Type, "recipient", j.n.RecipientID,
		"notification_id", j.n.ID, "error", err)
}
