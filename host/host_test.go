package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/dcwatch/cache"
	"github.com/rubiojr/dcwatch/internal/log"
	"github.com/rubiojr/dcwatch/sensor"
	"github.com/rubiojr/dcwatch/store"
)

type fakeSensor struct {
	name    string
	initErr error
	pollErr error
	// block, when set, holds PollOnce until closed.
	block     chan struct{}
	inits     atomic.Int32
	polls     atomic.Int32
	shutdowns atomic.Int32
}

func (s *fakeSensor) Name() string { return s.name }

func (s *fakeSensor) Initialize(ctx context.Context) error {
	s.inits.Add(1)
	return s.initErr
}

func (s *fakeSensor) PollOnce(ctx context.Context) error {
	s.polls.Add(1)
	if s.block != nil {
		<-s.block
	}
	return s.pollErr
}

func (s *fakeSensor) Shutdown() error {
	s.shutdowns.Add(1)
	return nil
}

func (s *fakeSensor) AddTrigger(sensor.Trigger)    {}
func (s *fakeSensor) UpdateTrigger(sensor.Trigger) {}
func (s *fakeSensor) RemoveTrigger(sensor.Trigger) {}

type recorder struct {
	mu      sync.Mutex
	payload []any
}

func (r *recorder) Dispatch(ctx context.Context, trigger string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payload = append(r.payload, payload)
}

func newTestHost(t *testing.T, opts ...Option) (*Host, store.Store) {
	t.Helper()
	dir := t.TempDir()

	s, err := store.NewStore(filepath.Join(dir, "store.db"))
	require.NoError(t, err)
	c, err := cache.NewCache(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
		c.Close()
	})

	opts = append([]Option{
		WithStore(s),
		WithCache(c),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithSchedule("@every 1h"),
	}, opts...)
	h, err := New(opts...)
	require.NoError(t, err)
	return h, s
}

func TestNewDefaultLogger(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() { log.SetDefault(prev) })

	logger := slog.New(slog.DiscardHandler)
	log.SetDefault(logger)

	dir := t.TempDir()
	s, err := store.NewStore(filepath.Join(dir, "store.db"))
	require.NoError(t, err)
	defer s.Close()
	c, err := cache.NewCache(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	defer c.Close()

	h, err := New(WithStore(s), WithCache(c))
	require.NoError(t, err)
	assert.Same(t, logger, h.logger)
}

func TestNewInvalidSchedule(t *testing.T) {
	_, err := New(WithSchedule("every now and then"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestRegister(t *testing.T) {
	h, _ := newTestHost(t)
	ok := &fakeSensor{name: "games/tetris"}
	broken := &fakeSensor{name: "games/doom", initErr: errors.New("connection refused")}

	require.NoError(t, h.Register(context.Background(), ok))
	err := h.Register(context.Background(), broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "games/doom")

	assert.EqualValues(t, 1, ok.inits.Load())
	assert.EqualValues(t, 1, broken.inits.Load())
	require.Len(t, h.Sensors(), 1)
	assert.Equal(t, "games/tetris", h.Sensors()[0].Name())
}

func TestPollAll(t *testing.T) {
	h, _ := newTestHost(t)
	a := &fakeSensor{name: "a"}
	b := &fakeSensor{name: "b", pollErr: sensor.ErrFetch}
	c := &fakeSensor{name: "c"}
	for _, s := range []*fakeSensor{a, b, c} {
		require.NoError(t, h.Register(context.Background(), s))
	}

	err := h.PollAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sensor.ErrFetch)
	assert.Contains(t, err.Error(), "b: ")

	for _, s := range []*fakeSensor{a, b, c} {
		assert.EqualValues(t, 1, s.polls.Load(), s.name)
	}
}

func TestStartWithoutSensors(t *testing.T) {
	h, _ := newTestHost(t)
	assert.Error(t, h.Start(context.Background()))
}

func TestStartPollsAndStops(t *testing.T) {
	h, _ := newTestHost(t)
	s := &fakeSensor{name: "games/tetris"}
	require.NoError(t, h.Register(context.Background(), s))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.Start(ctx) }()

	require.Eventually(t, func() bool { return s.polls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
	assert.EqualValues(t, 1, s.shutdowns.Load())
	assert.EqualValues(t, 1, s.polls.Load())
}

func TestStartSkipsOverlappingCycles(t *testing.T) {
	h, _ := newTestHost(t, WithSchedule("@every 1s"))
	s := &fakeSensor{name: "games/tetris", block: make(chan struct{})}
	require.NoError(t, h.Register(context.Background(), s))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.Start(ctx) }()

	require.Eventually(t, func() bool { return s.polls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Ticks fire while the first cycle is still running.
	time.Sleep(2500 * time.Millisecond)
	assert.EqualValues(t, 1, s.polls.Load())

	cancel()
	select {
	case <-errc:
		t.Fatal("Start returned while a cycle was still running")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Zero(t, s.shutdowns.Load())

	close(s.block)
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after the cycle finished")
	}
	assert.EqualValues(t, 1, s.polls.Load())
	assert.EqualValues(t, 1, s.shutdowns.Load())
}

func TestPollLogsErrors(t *testing.T) {
	var buf bytes.Buffer
	h, _ := newTestHost(t, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	h.poll(&fakeSensor{name: "games/tetris", pollErr: sensor.ErrFetch})
	assert.Contains(t, buf.String(), "Poll failed")
	assert.Contains(t, buf.String(), "sensor=games/tetris")
}

func TestServiceNamespaces(t *testing.T) {
	rec := &recorder{}
	h, st := newTestHost(t, WithEmitter(rec))

	tetris := h.Service("games/tetris")
	htop := h.Service("tools/htop")

	require.NoError(t, tetris.Values().SetValue(sensor.LastVersionKey, "1.0"))
	_, ok, err := htop.Values().GetValue(sensor.LastVersionKey)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := st.Get([]byte("dcstore:games/tetris:last_version"))
	require.NoError(t, err)
	assert.Equal(t, "1.0", string(v))

	require.NoError(t, tetris.Cache().Put([]byte(sensor.MetadataKey), []byte("{}")))
	_, err = htop.Cache().Get([]byte(sensor.MetadataKey))
	assert.Error(t, err)

	tetris.Emitter().Dispatch(context.Background(), sensor.TriggerRef, "payload")
	assert.Equal(t, []any{"payload"}, rec.payload)
	assert.NotNil(t, tetris.Logger("games/tetris"))
}

func TestHostRunsAppSensor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/store":
		case "/store/games/tetris/app.json":
			fmt.Fprint(w, `{"Version":"1.0","Name":"Tetris","Filename":"f","Pkgname":"tetris","Author":"a","Contributor":"c","Website":"w","Update":"u","Size":1,"More":"m"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	rec := &recorder{}
	h, st := newTestHost(t, WithEmitter(rec))

	name := "games/tetris"
	s, err := sensor.New(sensor.Config{BaseURL: server.URL + "/store", Category: "games", Pkgname: "tetris"},
		sensor.WithService(h.Service(name)))
	require.NoError(t, err)
	require.NoError(t, h.Register(context.Background(), s))

	require.NoError(t, h.PollAll(context.Background()))
	require.NoError(t, h.PollAll(context.Background()))
	require.Len(t, rec.payload, 1)
	assert.Equal(t, "Tetris", rec.payload[0].(sensor.Payload).Name)

	v, err := st.Get([]byte("dcstore:games/tetris:last_version"))
	require.NoError(t, err)
	assert.Equal(t, "1.0", string(v))

	// A fresh sensor on the same store picks up the persisted version.
	again, err := sensor.New(sensor.Config{BaseURL: server.URL + "/store", Category: "games", Pkgname: "tetris"},
		sensor.WithService(h.Service(name)))
	require.NoError(t, err)
	require.NoError(t, again.Initialize(context.Background()))
	require.NoError(t, again.PollOnce(context.Background()))
	assert.Len(t, rec.payload, 1)
	assert.Equal(t, sensor.NewVersion("1.0"), again.LastVersion())
}
