package event

import (
	"context"
	"log/slog"
)

type Handler func(ctx context.Context, e Event) error

// Listener fans events out to every registered handler, one event at a time.
type Listener struct {
	handlers []Handler
	events   chan Event
	logger   *slog.Logger
}

func NewListener(logger *slog.Logger) *Listener {
	return &Listener{
		events: make(chan Event, 100),
		logger: logger,
	}
}

// Register must be called before Listen.
func (l *Listener) Register(h Handler) {
	l.handlers = append(l.handlers, h)
}

// Send queues e for delivery. When the buffer is full the event is dropped so the
// automation never waits on a slow chat API.
func (l *Listener) Send(e Event) {
	select {
	case l.events <- e:
	default:
		l.logger.Warn("Event buffer full, dropping event", slog.String("message", e.Message()))
	}
}

func (l *Listener) Listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-l.events:
			for _, h := range l.handlers {
				if err := h(ctx, e); err != nil {
					l.logger.Error("error running event handler", slog.Any("error", err))
				}
			}
		}
	}
}
