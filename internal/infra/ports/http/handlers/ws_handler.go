package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/GiorgioBrux/raimu-sub001/internal/application/config"
	"github.com/GiorgioBrux/raimu-sub001/internal/application/constant"
	"github.com/GiorgioBrux/raimu-sub001/internal/application/metric"
	"github.com/GiorgioBrux/raimu-sub001/internal/domain"
	"github.com/GiorgioBrux/raimu-sub001/internal/usecase"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// safeConn serializes writes to one websocket connection. The signaling
// loop, pipeline goroutines and registry broadcasts all write concurrently.
type safeConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

var _ domain.Conn = (*safeConn)(nil)

func (c *safeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *safeConn) writePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

func (c *safeConn) Close() error {
	return c.ws.Close()
}

// WebSocketHandler upgrades signaling connections and pumps their messages
// into the signaling usecase.
type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	signaling *usecase.SignalingUsecase
}

func NewWebSocketHandler(cfg *config.Config, signaling *usecase.SignalingUsecase) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		signaling: signaling,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"websocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}

	conn := &safeConn{ws: ws}
	defer conn.Close()

	sess := domain.NewSession(conn)

	metric.IncrementWSActiveConnections()
	defer metric.DecrementWSActiveConnections()

	// Disconnect cleanup runs exactly once, whatever ends the read loop.
	defer h.signaling.HandleDisconnect(sess)

	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.writePing(); err != nil {
					return
				}
			case <-c.Request().Context().Done():
				return
			}
		}
	}()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		default:
			_, msg, err := ws.ReadMessage()
			if err != nil {
				h.logReadError(sess, err)
				return nil
			}

			h.signaling.HandleMessage(c.Request().Context(), sess, msg)
		}
	}
}

func (h *WebSocketHandler) logReadError(sess *domain.Session, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			slog.Info("client disconnected", slog.String(constant.UserID, sess.UserID()))
		default:
			slog.Error(
				"websocket close error",
				slog.String(constant.UserID, sess.UserID()),
				slog.Any(constant.Error, err),
			)
		}
		return
	}

	slog.Error(
		"websocket read",
		slog.String(constant.UserID, sess.UserID()),
		slog.Any(constant.Error, err),
	)
}
