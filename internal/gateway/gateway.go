// Package gateway exposes the conversation engine over a WebSocket endpoint
// so platform adapters (messaging bridges, web frontends) can drive it with
// JSON frames.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yctsai/baobei/internal/bot"
)

const (
	// ChatEndpoint is the WebSocket path.
	ChatEndpoint = "/ws/chat"

	// HealthEndpoint is the path for health checks.
	HealthEndpoint = "/health"

	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// maxInboundFrame caps an inbound frame; photos arrive base64-encoded.
	maxInboundFrame = 16 * 1024 * 1024
)

// InboundFrame is one client message. Type selects which fields apply.
type InboundFrame struct {
	// Type is "text", "image", or "command".
	Type string `json:"type"`

	// UserID identifies the end user this frame speaks for. A connection
	// without one gets a per-connection identity.
	UserID string `json:"user_id,omitempty"`

	// Text carries the message, caption, or command.
	Text string `json:"text,omitempty"`

	// ImageB64 carries an inbound photo, base64-encoded.
	ImageB64 string `json:"image_b64,omitempty"`
}

// OutboundFrame is the engine's answer to one inbound frame.
type OutboundFrame struct {
	Type     string `json:"type"` // "reply" or "error"
	Text     string `json:"text,omitempty"`
	ImageB64 string `json:"image_b64,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Server serves the chat gateway.
type Server struct {
	engine   *bot.Engine
	addr     string
	upgrader websocket.Upgrader
	server   *http.Server
	log      zerolog.Logger
}

// NewServer creates a gateway bound to addr.
func NewServer(engine *bot.Engine, addr string, log zerolog.Logger) *Server {
	return &Server{
		engine: engine,
		addr:   addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// local-first deployment; the default bind is loopback
				return true
			},
		},
		log: log.With().Str("component", "gateway").Logger(),
	}
}

// ListenAndServe runs the gateway until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(ChatEndpoint, s.handleChat)
	mux.HandleFunc(HealthEndpoint, s.handleHealth)

	s.server = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("chat gateway listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway shutdown: %w", err)
		}
		return nil
	}
}

// handleChat upgrades the connection and serves frames one at a time. Frames
// on one connection are handled sequentially, matching the one-user-per-
// connection model.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	conn.SetReadLimit(maxInboundFrame)
	s.log.Info().Str("conn", connID).Str("remote", r.RemoteAddr).Msg("client connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Str("conn", connID).Msg("read frame")
			}
			break
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.write(conn, connID, OutboundFrame{Type: "error", Error: "malformed frame"})
			continue
		}
		s.write(conn, connID, s.dispatch(r.Context(), connID, frame))
	}
	s.log.Info().Str("conn", connID).Msg("client disconnected")
}

// dispatch maps one inbound frame to an engine call.
func (s *Server) dispatch(ctx context.Context, connID string, frame InboundFrame) OutboundFrame {
	userID := frame.UserID
	if userID == "" {
		userID = connID
	}

	var resp bot.Response
	switch frame.Type {
	case "command":
		resp = s.engine.HandleCommand(ctx, userID, frame.Text)
	case "text":
		resp = s.engine.HandleText(ctx, userID, frame.Text)
	case "image":
		image, err := base64.StdEncoding.DecodeString(frame.ImageB64)
		if err != nil {
			return OutboundFrame{Type: "error", Error: "invalid image encoding"}
		}
		resp = s.engine.HandleImage(ctx, userID, image, frame.Text)
	default:
		return OutboundFrame{Type: "error", Error: fmt.Sprintf("unknown frame type %q", frame.Type)}
	}

	out := OutboundFrame{Type: "reply", Text: resp.Text}
	if len(resp.ImageJPEG) > 0 {
		out.ImageB64 = base64.StdEncoding.EncodeToString(resp.ImageJPEG)
	}
	return out
}

func (s *Server) write(conn *websocket.Conn, connID string, frame OutboundFrame) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		s.log.Warn().Err(err).Str("conn", connID).Msg("write frame")
	}
}

// handleHealth responds to health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "baobei-gateway",
	})
}
