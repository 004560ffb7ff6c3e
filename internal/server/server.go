// Package server exposes the signal stream to viewers: a websocket endpoint
// fanning out hub snapshots, the static viewer page, and the ops probes.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pumpwatch/internal/config"
	"pumpwatch/internal/hub"
	"pumpwatch/pkg/logger"
)

// Server is the viewer-facing HTTP server.
type Server struct {
	cfg      config.ServerConfig
	hub      *hub.Hub
	version  string
	upgrader websocket.Upgrader
}

// New creates a server over the given hub.
func New(cfg config.ServerConfig, h *hub.Hub, version string) *Server {
	return &Server{
		cfg:     cfg,
		hub:     h,
		version: version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully. Active
// sessions are canceled through the request context.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     s.Routes(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("viewer server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	newSession(conn, s.hub, s.cfg).run(r.Context())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	snap, gen := s.hub.Latest()
	status := "waiting_for_feed"
	if snap != nil {
		status = snap.Status
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     "ok",
		"version":    s.version,
		"feed":       status,
		"generation": gen,
	})
}
