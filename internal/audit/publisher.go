package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher captures structured audit events. Synchronous by default; with an
// async buffer events are persisted by a background drain so registry calls
// never block on the audit store.
type Publisher struct {
	store  Store
	logger *slog.Logger

	inbox chan Event
	done  chan struct{}
	once  sync.Once
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer switches the publisher to buffered async mode. A full
// buffer drops the event rather than blocking the caller.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit records an audit event. In async mode a full buffer drops the event;
// audit is best-effort and must never stall artifact processing.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.Warn("audit buffer full, dropping event", "action", string(event.Action))
		}
	}
	return nil
}

// Close drains the async buffer and stops the background worker.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.once.Do(func() {
		close(p.inbox)
		<-p.done
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit append failed", "error", err, "action", string(event.Action))
		}
	}
}
