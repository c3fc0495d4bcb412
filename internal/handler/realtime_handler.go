package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/herald-backend/internal/feed"
	"github.com/shinyyama/herald-backend/internal/messaging"
	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/session"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	sinkCapacity = 64
)

var errUnknownCommand = errors.New("unknown command")

// Frame is one server to client websocket message.
type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Command is one client to server websocket message.
type Command struct {
	Type    string `json:"type"`
	ID      uint64 `json:"id,omitempty"`
	Peer    string `json:"peer,omitempty"`
	Content string `json:"content,omitempty"`
}

type threadPayload struct {
	Peer     string          `json:"peer"`
	Messages []model.Message `json:"messages"`
}

// wsSink queues frames for the connection writer. A full queue drops the
// frame; the periodic feed refresh sends a complete snapshot again.
type wsSink struct {
	out    chan Frame
	logger *slog.Logger
}

func newWSSink(logger *slog.Logger) *wsSink {
	return &wsSink{out: make(chan Frame, sinkCapacity), logger: logger}
}

func (s *wsSink) push(f Frame) {
	select {
	case s.out <- f:
	default:
		s.logger.Warn("websocket queue full, dropping frame", "type", f.Type)
	}
}

func (s *wsSink) FeedChanged(snap feed.Snapshot) { s.push(Frame{Type: "feed", Payload: snap}) }
func (s *wsSink) Toast(t feed.Toast)             { s.push(Frame{Type: "toast", Payload: t}) }
func (s *wsSink) ConversationsChanged(c []messaging.Conversation) {
	s.push(Frame{Type: "conversations", Payload: c})
}
func (s *wsSink) MessagesChanged(peer string, msgs []model.Message) {
	s.push(Frame{Type: "messages", Payload: threadPayload{Peer: peer, Messages: msgs}})
}

type RealtimeHandler struct {
	sessions *session.Manager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewRealtimeHandler(sessions *session.Manager, checkOrigin func(r *http.Request) bool, logger *slog.Logger) *RealtimeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RealtimeHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.With("component", "realtime"),
	}
}

// Serve upgrades the request and runs a session for the caller until the
// socket closes or the user signs out.
func (h *RealtimeHandler) Serve(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "uid", uid, "error", err)
		return nil
	}
	defer conn.Close()

	logger := h.logger.With("uid", uid)
	sink := newWSSink(logger)
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	sess := h.sessions.Start(ctx, uid, sink)
	defer sess.Stop()

	go h.writeLoop(ctx, conn, sink, sess)

	conn.SetReadLimit(8 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("websocket closed", "error", err)
			}
			return nil
		}
		if err := h.dispatch(ctx, sess, cmd); err != nil {
			sink.push(Frame{Type: "error", Payload: map[string]string{"command": cmd.Type, "message": err.Error()}})
		}
	}
}

func (h *RealtimeHandler) dispatch(ctx context.Context, sess *session.Session, cmd Command) error {
	switch cmd.Type {
	case "mark_read":
		return sess.Feed.MarkRead(ctx, cmd.ID)
	case "mark_all_read":
		return sess.Feed.MarkAllRead(ctx)
	case "delete":
		return sess.Feed.Delete(ctx, cmd.ID)
	case "clear_all":
		return sess.Feed.ClearAll(ctx)
	case "refresh":
		return sess.Feed.Refresh(ctx)
	case "open_conversation":
		return sess.Messaging.Open(ctx, cmd.Peer)
	case "close_conversation":
		sess.Messaging.Close()
		return nil
	case "send_message":
		_, err := sess.Messaging.Send(ctx, cmd.Peer, cmd.Content)
		return err
	}
	return errUnknownCommand
}

// writeLoop is the only goroutine writing to conn.
func (h *RealtimeHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sink *wsSink, sess *session.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"))
			_ = conn.Close()
			return
		case f := <-sink.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
