// Package sensor implements the dcstore version poller and the contract it
// shares with the host that schedules it.
package sensor

import (
	"context"
	"log/slog"

	"github.com/rubiojr/dcwatch/cache"
)

// Sensor is the lifecycle a host drives. Initialize runs once, PollOnce is
// called on the host's schedule and never concurrently for one sensor, and
// Shutdown runs when the host stops.
type Sensor interface {
	Name() string
	Initialize(ctx context.Context) error
	PollOnce(ctx context.Context) error
	Shutdown() error

	AddTrigger(t Trigger)
	UpdateTrigger(t Trigger)
	RemoveTrigger(t Trigger)
}

// Trigger is a host level subscription to an event emitted by a sensor.
type Trigger struct {
	Ref        string
	Parameters map[string]any
}

// Fetcher retrieves catalog documents.
type Fetcher interface {
	Ping(ctx context.Context, url string) (int, error)
	FetchJSON(ctx context.Context, url string) (map[string]any, error)
	Close()
}

// Values is the persistent named value capability of the host.
type Values interface {
	GetValue(name string) (value string, ok bool, err error)
	SetValue(name, value string) error
	DeleteValue(name string) error
}

// Emitter hands events to the host. Delivery is fire and forget.
type Emitter interface {
	Dispatch(ctx context.Context, trigger string, payload any)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, trigger string, payload any)

func (f EmitterFunc) Dispatch(ctx context.Context, trigger string, payload any) {
	f(ctx, trigger, payload)
}

// Service is the facade a host offers its sensors. Values and Cache return
// nil when the host has no such capability.
type Service interface {
	Logger(name string) *slog.Logger
	Values() Values
	Cache() cache.Cache
	Emitter() Emitter
}
