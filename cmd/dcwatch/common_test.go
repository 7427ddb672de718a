package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/dcwatch/cache"
	"github.com/rubiojr/dcwatch/host"
	"github.com/rubiojr/dcwatch/internal/config"
	"github.com/rubiojr/dcwatch/store"
)

func TestSelectWatches(t *testing.T) {
	cfg := &config.Config{Watches: []config.Watch{
		{Category: "games", Pkgname: "tetris"},
		{Category: "tools", Pkgname: "htop"},
	}}

	all, err := selectWatches(cfg, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := selectWatches(cfg, []string{"tools/htop"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "htop", one[0].Pkgname)

	_, err = selectWatches(cfg, []string{"games/doom"})
	assert.Error(t, err)
}

func TestParseRecipients(t *testing.T) {
	jids, err := parseRecipients([]string{"+34600000000", "120363001234@g.us"})
	require.NoError(t, err)
	require.Len(t, jids, 2)
	assert.Equal(t, "34600000000", jids[0].User)
	assert.Equal(t, "g.us", jids[1].Server)

	_, err = parseRecipients([]string{" "})
	assert.Error(t, err)
}

func TestRegisterWatchesShutsDownOnFailure(t *testing.T) {
	var closed atomic.Int32
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Config.ConnState = func(c net.Conn, state http.ConnState) {
		if state == http.StateClosed {
			closed.Add(1)
		}
	}
	server.Start()
	defer server.Close()

	dir := t.TempDir()
	st, err := store.NewStore(filepath.Join(dir, "store.db"))
	require.NoError(t, err)
	defer st.Close()
	c, err := cache.NewCache(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	defer c.Close()

	h, err := host.New(
		host.WithStore(st),
		host.WithCache(c),
		host.WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)

	cfg := &config.Config{BaseURL: server.URL}
	watches := []config.Watch{
		{Category: "games", Pkgname: "tetris"},
		{Category: "games"},
	}

	err = registerWatches(context.Background(), h, cfg, watches)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "games/")
	require.Len(t, h.Sensors(), 1)

	// Shutting the first sensor down drops its idle catalog connection.
	assert.Eventually(t, func() bool { return closed.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
