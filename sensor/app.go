package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rubiojr/dcwatch/cache"
	"github.com/rubiojr/dcwatch/internal/catalog"
	"github.com/rubiojr/dcwatch/internal/log"
)

const (
	// TriggerRef identifies the event emitted on a version change.
	TriggerRef = "dcstore.new_version"

	LastVersionKey = "last_version"
	MetadataKey    = "metadata"
)

// Config selects the package an AppSensor watches.
type Config struct {
	BaseURL  string
	Category string
	Pkgname  string
}

// Validate reports a missing category or pkgname.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(c.Pkgname) == "" {
		missing = append(missing, "pkgname")
	}
	if len(missing) > 0 {
		return newError(KindConfig, "setup", errors.New("missing required option: "+strings.Join(missing, ", ")))
	}
	return nil
}

// AppSensor polls one dcstore app document and emits TriggerRef each time
// its Version changes.
type AppSensor struct {
	locator Locator
	fetcher Fetcher
	values  Values
	cache   cache.Cache
	emitter Emitter
	logger  *slog.Logger

	lastVersion Version
	loaded      bool
}

type Option func(*AppSensor)

// WithService wires the collaborators offered by a host.
func WithService(svc Service) Option {
	return func(s *AppSensor) {
		s.logger = svc.Logger(s.Name())
		s.values = svc.Values()
		s.cache = svc.Cache()
		s.emitter = svc.Emitter()
	}
}

// WithFetcher replaces the catalog client built by Initialize.
func WithFetcher(f Fetcher) Option {
	return func(s *AppSensor) {
		s.fetcher = f
	}
}

// WithValues enables persistence of the last seen version. Without it the
// version is only kept in memory.
func WithValues(v Values) Option {
	return func(s *AppSensor) {
		s.values = v
	}
}

// WithCache records the last fetched document.
func WithCache(c cache.Cache) Option {
	return func(s *AppSensor) {
		s.cache = c
	}
}

func WithEmitter(e Emitter) Option {
	return func(s *AppSensor) {
		s.emitter = e
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *AppSensor) {
		s.logger = logger
	}
}

// New validates cfg and returns a sensor ready for Initialize.
func New(cfg Config, opts ...Option) (*AppSensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	s := &AppSensor{
		locator: Locator{
			BaseURL:  cfg.BaseURL,
			Category: cfg.Category,
			Pkgname:  cfg.Pkgname,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = log.Named(s.Name())
	}
	if s.emitter == nil {
		s.logger.Warn("No emitter configured, version events will be dropped")
		s.emitter = EmitterFunc(func(context.Context, string, any) {})
	}

	return s, nil
}

func (s *AppSensor) Name() string {
	return s.locator.Key()
}

func (s *AppSensor) Locator() Locator {
	return s.locator
}

// Initialize builds the catalog client when none was injected and checks
// the catalog answers. Transport failures abort setup.
func (s *AppSensor) Initialize(ctx context.Context) error {
	if s.fetcher == nil {
		s.fetcher = catalog.NewClient(catalog.WithLogger(s.logger))
	}

	status, err := s.fetcher.Ping(ctx, s.locator.BaseURL)
	if err != nil {
		return newError(KindTransport, "setup", err)
	}
	if !statusOK(status) {
		s.logger.Warn("Catalog answered liveness check with an error status", "url", s.locator.BaseURL, "status", status)
	}

	s.lastVersion = Version{}
	s.loaded = false

	s.logger.Debug("Sensor initialized", "url", s.locator.URL())
	return nil
}

// PollOnce runs one fetch, compare and notify cycle.
func (s *AppSensor) PollOnce(ctx context.Context) error {
	if s.fetcher == nil {
		return ErrNotInitialized
	}

	doc, err := s.fetcher.FetchJSON(ctx, s.locator.URL())
	if err != nil {
		return newError(KindFetch, "poll", err)
	}
	md := Metadata(doc)

	current := md.Version()
	last := s.lastKnownVersion()
	if current == last {
		s.logger.Debug("Version unchanged", "version", current)
		return nil
	}

	s.logger.Info("New version detected", "package", s.locator.Pkgname, "version", current, "previous", last)
	s.setLastVersion(current)
	s.record(md)

	payload, err := md.Payload()
	if err != nil {
		return newError(KindMalformedPayload, "poll", err)
	}

	s.emitter.Dispatch(ctx, TriggerRef, payload)
	return nil
}

// Shutdown releases the catalog client.
func (s *AppSensor) Shutdown() error {
	if s.fetcher != nil {
		s.fetcher.Close()
	}
	return nil
}

// The sensor emits a single implicit trigger type, so subscription changes
// need no bookkeeping.

func (s *AppSensor) AddTrigger(t Trigger) {
	s.logger.Debug("Trigger added", "ref", t.Ref)
}

func (s *AppSensor) UpdateTrigger(t Trigger) {
	s.logger.Debug("Trigger updated", "ref", t.Ref)
}

func (s *AppSensor) RemoveTrigger(t Trigger) {
	s.logger.Debug("Trigger removed", "ref", t.Ref)
}

// LastVersion returns the last seen version, loading it from the host
// store on first use.
func (s *AppSensor) LastVersion() Version {
	return s.lastKnownVersion()
}

func (s *AppSensor) lastKnownVersion() Version {
	if s.loaded {
		return s.lastVersion
	}
	s.loaded = true

	if s.values == nil {
		return s.lastVersion
	}

	v, ok, err := s.values.GetValue(LastVersionKey)
	if err != nil {
		s.logger.Warn("Failed to read last version, continuing without it", "error", err)
		return s.lastVersion
	}
	if ok {
		s.lastVersion = NewVersion(v)
	}
	return s.lastVersion
}

func (s *AppSensor) setLastVersion(v Version) {
	s.lastVersion = v
	s.loaded = true

	if s.values == nil {
		return
	}

	var err error
	if v.Valid() {
		err = s.values.SetValue(LastVersionKey, v.Value())
	} else {
		err = s.values.DeleteValue(LastVersionKey)
	}
	if err != nil {
		s.logger.Warn("Failed to persist last version", "version", v, "error", err)
	}
}

func (s *AppSensor) record(md Metadata) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(md)
	if err != nil {
		s.logger.Debug("Failed to encode metadata for the cache", "error", err)
		return
	}
	if err := s.cache.Put([]byte(MetadataKey), data); err != nil {
		s.logger.Debug("Failed to cache metadata", "error", err)
	}
}

var (
	_ Sensor  = (*AppSensor)(nil)
	_ Fetcher = (*catalog.Client)(nil)
)

func statusOK(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
