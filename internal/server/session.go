package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pumpwatch/internal/config"
	"pumpwatch/internal/hub"
	"pumpwatch/internal/metrics"
	"pumpwatch/pkg/logger"
	"pumpwatch/pkg/models"
)

// Session streams snapshots to one connected viewer. Each session is an
// isolated failure domain: a write error or timeout tears down this session
// only, and its pull-based cursor into the hub means a slow viewer loses
// intermediate generations instead of building up a backlog.
type Session struct {
	id   string
	conn *websocket.Conn
	hub  *hub.Hub
	cfg  config.ServerConfig

	writeMu sync.Mutex
}

func newSession(conn *websocket.Conn, h *hub.Hub, cfg config.ServerConfig) *Session {
	return &Session{
		id:   uuid.NewString(),
		conn: conn,
		hub:  h,
		cfg:  cfg,
	}
}

// run delivers the current snapshot immediately, then every newer generation
// until the viewer disconnects or a write fails. Generations observed by one
// session are strictly increasing.
func (s *Session) run(ctx context.Context) {
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.conn.Close()

	logger.Info("viewer connected", zap.String("session", s.id))
	defer logger.Info("viewer disconnected", zap.String("session", s.id))

	go s.readPump(cancel)
	go s.pingLoop(ctx)

	var cursor uint64
	if latest, gen := s.hub.Latest(); latest != nil {
		if err := s.writeSnapshot(latest); err != nil {
			logger.Debug("initial snapshot write failed", zap.String("session", s.id), zap.Error(err))
			return
		}
		cursor = gen
	}

	for {
		snap, err := s.hub.Wait(ctx, cursor)
		if err != nil {
			return
		}
		if err := s.writeSnapshot(snap); err != nil {
			logger.Debug("snapshot write failed", zap.String("session", s.id), zap.Error(err))
			return
		}
		cursor = snap.Generation
	}
}

func (s *Session) writeSnapshot(snap *models.SignalSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout()))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// readPump drains inbound frames so control messages are processed and the
// connection close is noticed promptly. Viewers are not expected to send
// application data.
func (s *Session) readPump(cancel context.CancelFunc) {
	defer cancel()

	s.conn.SetReadLimit(4096)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait()))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait()))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Session) pingLoop(ctx context.Context) {
	period := s.cfg.PongWait() * 5 / 6
	if period <= 0 {
		period = 50 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout()))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
