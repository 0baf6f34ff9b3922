package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"attesto/pkg/domain"
	"attesto/pkg/requestcontext"
)

// Store is the persistence surface the publisher writes through.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject domain.SubjectID) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
//
// By default Emit is synchronous and its error must be handled by the
// caller. WithAsyncBuffer switches to a buffered channel drained by a
// background goroutine; async appends are best effort.
type Publisher struct {
	store  Store
	logger *slog.Logger

	inbox     chan Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type Option func(p *Publisher)

// WithAsyncBuffer enables asynchronous emission with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

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

// Emit records a single audit event. The timestamp defaults to the request
// time and the request id is filled from context when the caller left it
// empty.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = requestcontext.Now(ctx)
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	if p.inbox == nil {
		return p.store.Append(ctx, base)
	}
	select {
	case p.inbox <- base:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("audit buffer full")
	}
}

// List returns the recorded events for a subject, most recent first.
func (p *Publisher) List(ctx context.Context, subject domain.SubjectID) ([]Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close drains any buffered events and stops the background goroutine.
// Safe to call on a synchronous publisher.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox == nil {
			return
		}
		close(p.inbox)
		p.wg.Wait()
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit append failed", "action", event.Action, "error", err)
		}
	}
}
