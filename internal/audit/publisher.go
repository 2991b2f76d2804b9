package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, subject string) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and
// uses the storage layer for persistence so tests can swap sinks.
// With an async buffer configured, Emit never blocks domain logic on
// the sink.
type Publisher struct {
	store Store

	inbox chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer makes Emit enqueue into a buffered channel drained by
// a background goroutine. Events are dropped when the buffer is full;
// the audit trail is best-effort by contract, never a write blocker.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

// NewPublisher builds a Publisher over the given store.
func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		_ = p.store.Append(context.Background(), event)
	}
}

// Emit records an event, stamping ID and Timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox != nil {
		select {
		case p.inbox <- event:
		default:
		}
		return nil
	}
	return p.store.Append(ctx, event)
}

// List returns events for a subject, oldest first.
func (p *Publisher) List(ctx context.Context, subject string) ([]Event, error) {
	return p.store.List(ctx, subject)
}

// Close stops the async drain goroutine after flushing queued events.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}
