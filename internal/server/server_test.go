package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpwatch/internal/config"
	"pumpwatch/internal/hub"
	"pumpwatch/pkg/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	h := hub.New()
	cfg := config.Default().Server
	srv := httptest.NewServer(New(cfg, h, "test").Routes())
	t.Cleanup(srv.Close)
	return srv, h
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialViewer(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) models.SignalSnapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var snap models.SignalSnapshot
	require.NoError(t, json.Unmarshal(payload, &snap))
	return snap
}

func publish(h *hub.Hub, symbols ...string) {
	signals := make([]models.Signal, 0, len(symbols))
	for _, s := range symbols {
		signals = append(signals, models.Signal{Symbol: s})
	}
	h.Publish(models.SignalSnapshot{
		Version: models.SnapshotVersion,
		Status:  models.StatusOK,
		AsOf:    time.Now(),
		Signals: signals,
	})
}

func TestSessionDeliversCurrentSnapshotOnConnect(t *testing.T) {
	srv, h := newTestServer(t)
	publish(h, "BTCUSDT")

	conn := dialViewer(t, srv)
	snap := readSnapshot(t, conn)

	assert.Equal(t, uint64(1), snap.Generation)
	require.Len(t, snap.Signals, 1)
	assert.Equal(t, "BTCUSDT", snap.Signals[0].Symbol)
}

func TestSessionStreamsNewGenerations(t *testing.T) {
	srv, h := newTestServer(t)
	publish(h, "BTCUSDT")

	conn := dialViewer(t, srv)
	first := readSnapshot(t, conn)

	publish(h, "ETHUSDT")
	second := readSnapshot(t, conn)

	assert.Greater(t, second.Generation, first.Generation)
	require.Len(t, second.Signals, 1)
	assert.Equal(t, "ETHUSDT", second.Signals[0].Symbol)
}

func TestSessionsAreIsolated(t *testing.T) {
	srv, h := newTestServer(t)
	publish(h, "BTCUSDT")

	broken := dialViewer(t, srv)
	readSnapshot(t, broken)
	broken.Close()

	healthy := dialViewer(t, srv)
	readSnapshot(t, healthy)

	// The torn-down session must not affect delivery to the healthy one.
	publish(h, "ETHUSDT")
	snap := readSnapshot(t, healthy)
	require.Len(t, snap.Signals, 1)
	assert.Equal(t, "ETHUSDT", snap.Signals[0].Symbol)
}

func TestHealthz(t *testing.T) {
	srv, h := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "waiting_for_feed", body["feed"])

	publish(h, "BTCUSDT")
	resp2, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body))
	assert.Equal(t, models.StatusOK, body["feed"])
	assert.Equal(t, float64(1), body["generation"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
