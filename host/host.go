// Package host runs sensors on a cron schedule and provides them with
// logging, persistent values, a metadata cache and event dispatch.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rubiojr/dcwatch/cache"
	"github.com/rubiojr/dcwatch/internal/appfs"
	"github.com/rubiojr/dcwatch/internal/log"
	"github.com/rubiojr/dcwatch/sensor"
	"github.com/rubiojr/dcwatch/store"
)

const (
	DefaultSchedule = "@every 5m"
	// Namespace prefixes every sensor's store and cache keys.
	Namespace = "dcstore"
	// ShutdownTimeout bounds how long Stop waits for running cycles.
	ShutdownTimeout = 30 * time.Second
)

// Host owns the scheduler and the services shared by its sensors.
type Host struct {
	logger   *slog.Logger
	store    store.Store
	cache    cache.Cache
	emitter  sensor.Emitter
	schedule string

	ownsStore bool
	ownsCache bool

	cron    *cron.Cron
	runCtx  context.Context
	wg      sync.WaitGroup
	mu      sync.Mutex
	sensors []sensor.Sensor
	jobs    []cron.Job
}

// Option is a function that configures the Host
type Option func(*Host)

// WithLogger sets a custom logger for the host.
// If not provided, the host will use log.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithStore sets the persistent store backing sensor values.
// If not provided, the host opens the default store.
func WithStore(s store.Store) Option {
	return func(h *Host) {
		h.store = s
	}
}

// WithCache sets the cache sensors record fetched documents in.
// If not provided, the host opens the default cache.
func WithCache(c cache.Cache) Option {
	return func(h *Host) {
		h.cache = c
	}
}

// WithEmitter sets where sensor events are dispatched.
func WithEmitter(e sensor.Emitter) Option {
	return func(h *Host) {
		h.emitter = e
	}
}

// WithSchedule sets the cron spec every sensor is polled on, for example
// "@every 10m" or "*/15 * * * *".
func WithSchedule(spec string) Option {
	return func(h *Host) {
		h.schedule = spec
	}
}

// New creates a Host. Store and cache default to sqlite databases under
// the dcwatch data directory.
func New(opts ...Option) (*Host, error) {
	h := &Host{
		logger:   log.Default(),
		schedule: DefaultSchedule,
		runCtx:   context.Background(),
	}

	for _, opt := range opts {
		opt(h)
	}

	if _, err := cron.ParseStandard(h.schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", h.schedule, err)
	}

	if h.store == nil {
		path := appfs.StorePath()
		if err := appfs.EnsureParent(path); err != nil {
			return nil, err
		}
		s, err := store.NewStore(path)
		if err != nil {
			h.logger.Warn("Failed to initialize default store", "error", err)
			return nil, err
		}
		h.logger.Debug("Store initialized", "path", path)
		h.store = s
		h.ownsStore = true
	}

	if h.cache == nil {
		path := appfs.CachePath()
		if err := appfs.EnsureParent(path); err != nil {
			return nil, err
		}
		c, err := cache.NewCache(path)
		if err != nil {
			h.logger.Warn("Failed to initialize default cache", "error", err)
			return nil, err
		}
		h.logger.Debug("Cache initialized", "path", path)
		h.cache = c
		h.ownsCache = true
	}

	cl := cronLogger{h.logger}
	h.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return h, nil
}

// Service returns the facade handed to the sensor called name.
func (h *Host) Service(name string) sensor.Service {
	return &service{host: h, name: name}
}

// Register initializes s and schedules it. A sensor whose setup fails is
// not scheduled.
func (h *Host) Register(ctx context.Context, s sensor.Sensor) error {
	if err := s.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing sensor %s: %w", s.Name(), err)
	}

	id, err := h.cron.AddJob(h.schedule, cron.FuncJob(func() { h.poll(s) }))
	if err != nil {
		return fmt.Errorf("scheduling sensor %s: %w", s.Name(), err)
	}
	// The wrapped job carries the skip-if-running guard shared with the
	// scheduled runs.
	job := h.cron.Entry(id).WrappedJob

	h.mu.Lock()
	h.sensors = append(h.sensors, s)
	h.jobs = append(h.jobs, job)
	h.mu.Unlock()

	h.logger.Debug("Sensor registered", "sensor", s.Name(), "schedule", h.schedule)
	return nil
}

// Sensors returns the registered sensors.
func (h *Host) Sensors() []sensor.Sensor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sensor.Sensor(nil), h.sensors...)
}

// PollAll runs one cycle of every sensor in registration order.
func (h *Host) PollAll(ctx context.Context) error {
	var errs []error
	for _, s := range h.Sensors() {
		if err := s.PollOnce(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Start polls every sensor once and then on schedule until ctx is
// cancelled or the process is interrupted.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	jobs := append([]cron.Job(nil), h.jobs...)
	h.mu.Unlock()
	if len(jobs) == 0 {
		return errors.New("no sensors registered")
	}

	h.logger.Info("Starting sensor host", "sensors", len(jobs), "schedule", h.schedule)

	// Cycles run to completion, cancellation only stops new ones.
	h.runCtx = context.WithoutCancel(ctx)

	for _, job := range jobs {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			job.Run()
		}()
	}
	h.cron.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		h.logger.Debug("Host shutting down via context cancellation")
		h.Stop()
		return ctx.Err()
	case <-sigChan:
		h.logger.Debug("Host shutting down via signal")
		h.Stop()
		return nil
	}
}

// Stop halts the scheduler, waits for running cycles and shuts every
// sensor down.
func (h *Host) Stop() {
	stopped := h.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		h.logger.Warn("Timed out waiting for running poll cycles")
	}

	for _, s := range h.Sensors() {
		if err := s.Shutdown(); err != nil {
			h.logger.Warn("Error shutting down sensor", "sensor", s.Name(), "error", err)
		}
	}
}

// Close releases the store and cache opened by New.
func (h *Host) Close() error {
	var errs []error
	if h.ownsStore {
		errs = append(errs, h.store.Close())
	}
	if h.ownsCache {
		errs = append(errs, h.cache.Close())
	}
	return errors.Join(errs...)
}

func (h *Host) poll(s sensor.Sensor) {
	start := time.Now()
	if err := s.PollOnce(h.runCtx); err != nil {
		h.logger.Error("Poll failed", "sensor", s.Name(), "error", err)
		return
	}
	h.logger.Debug("Poll completed", "sensor", s.Name(), "took", time.Since(start))
}

type service struct {
	host *Host
	name string
}

func (s *service) Logger(name string) *slog.Logger {
	return s.host.logger.With("sensor", name)
}

func (s *service) Values() sensor.Values {
	if s.host.store == nil {
		return nil
	}
	return store.NewValues(s.host.store.Namespace(Namespace).Namespace(s.name))
}

func (s *service) Cache() cache.Cache {
	if s.host.cache == nil {
		return nil
	}
	return s.host.cache.Namespace(Namespace).Namespace(s.name)
}

func (s *service) Emitter() sensor.Emitter {
	return s.host.emitter
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
