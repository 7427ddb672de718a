// Package dispatch delivers sensor events to the configured sinks.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rubiojr/dcwatch/internal/log"
	"github.com/rubiojr/dcwatch/sensor"
)

var _ sensor.Emitter = (*Dispatcher)(nil)

// Event is one emitted trigger instance.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Trigger string    `json:"trigger"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// Sink receives events.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to its sinks. It satisfies sensor.Emitter.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithSink(s Sink) Option {
	return func(d *Dispatcher) {
		d.sinks = append(d.sinks, s)
	}
}

func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: log.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch wraps payload in an Event and hands it to every sink. Delivery
// errors are logged and never reach the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, trigger string, payload any) {
	ev := Event{
		ID:      uuid.New(),
		Trigger: trigger,
		Time:    d.now().UTC(),
		Payload: payload,
	}

	if len(d.sinks) == 0 {
		d.logger.Warn("Event dropped, no sinks configured", "trigger", trigger, "id", ev.ID)
		return
	}

	for _, s := range d.sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			d.logger.Error("Error delivering event",
				"trigger", trigger,
				"id", ev.ID,
				"sink", s.Name(),
				"error", err)
			continue
		}
		d.logger.Debug("Event delivered", "trigger", trigger, "id", ev.ID, "sink", s.Name())
	}
}

// Sinks returns the configured sink names.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}
