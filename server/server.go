// Package server exposes the WebSocket endpoint clients speak the session
// protocol over, plus a health probe.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vocalink/config"
	"vocalink/core"
	"vocalink/handlers/vad"
	"vocalink/router"
	"vocalink/services/energy"
	"vocalink/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 16,
	// Browser clients connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	settings *config.Settings
	registry *session.Registry
	router   *router.Router
	logger   *core.Logger
	http     *http.Server
}

func New(settings *config.Settings, registry *session.Registry, rt *router.Router, logger *core.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		settings: settings,
		registry: registry,
		router:   rt,
		logger:   logger,
	}
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/client-ws", s.handleClientWS)

	s.http = &http.Server{
		Addr:    settings.Addr(),
		Handler: engine,
	}
	return s
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.registry.Count(),
	})
}

func (s *Server) handleClientWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	id := uuid.New().String()
	segmenter := vad.NewSegmenter(energy.NewEnergyVADService(s.settings.VAD), s.settings.Segmenter)
	sess := session.New(id, &wsFrameWriter{conn: conn}, s.router, segmenter, s.settings.InputSampleRate, s.logger)

	if err := s.registry.Add(sess); err != nil {
		s.logger.Error("session registration failed", "session_id", id, "error", err.Error())
		_ = conn.Close()
		return
	}
	sess.Start()
	s.logger.Info("client connected", "session_id", id, "remote", conn.RemoteAddr().String())

	s.router.SendInitConfig(sess)
	s.readLoop(sess, conn)

	group, roster := s.registry.Remove(id)
	sess.Close()
	s.router.NotifyDeparture(group, roster)
	s.logger.Info("client disconnected", "session_id", id, "dropped_chunks", sess.DroppedChunks())
}

// readLoop pumps inbound frames into the router until the connection dies.
// Protocol errors are logged and tolerated; the connection only ends on a
// transport failure.
func (s *Server) readLoop(sess *session.Session, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read loop ended", "session_id", sess.ID, "error", err.Error())
			}
			return
		}
		if err := s.router.HandleFrame(sess, raw); err != nil {
			var protoErr *core.ProtocolError
			if errors.As(err, &protoErr) {
				s.logger.Warn("bad frame", "session_id", sess.ID, "error", protoErr.Error())
				continue
			}
			s.logger.Error("frame handling failed", "session_id", sess.ID, "error", err.Error())
		}
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("server listening", "addr", s.settings.Addr())
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and tears down every session.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	s.registry.CloseAll()
	return err
}
