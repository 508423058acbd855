package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"authserver/pkg/requestcontext"
)

// Store persists audit events. It is append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher stamps events and hands them to the store, either inline or
// through a buffered inbox drained by a Worker.
type Publisher struct {
	store  Store
	inbox  chan Event
	logger *slog.Logger
}

type Option func(*Publisher)

// WithBuffer makes Emit non-blocking: events go to a buffered inbox of the given
// size and are dropped with a warning when it is full.
func WithBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records an event. Audit failures never fail the flow that emitted them;
// they are logged and the error is returned for callers that care.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.inbox != nil {
		select {
		case p.inbox <- event:
		default:
			p.logger.WarnContext(ctx, "audit inbox full, event dropped",
				"action", event.Action,
				"client_id", event.ClientID,
			)
		}
		return nil
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to append audit event",
			"action", event.Action,
			"client_id", event.ClientID,
			"error", err,
		)
		return err
	}
	return nil
}

// Inbox returns the buffered channel for a Worker, or nil when Emit is synchronous.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}
