package shell

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/switchboard/internal/plugins/guard"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// clientMessage is sent by navigation.js when the page changes route
// without a full load.
type clientMessage struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// serverMessage tells the page to move.
type serverMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
}

// socketNavigator implements guard.Navigator over one WebSocket. gorilla
// connections allow one concurrent writer, so writes are serialized.
type socketNavigator struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (n *socketNavigator) Navigate(_ context.Context, target string) error {
	return n.write(func() error {
		return n.conn.WriteJSON(serverMessage{Type: "navigate", To: target})
	})
}

func (n *socketNavigator) ping() error {
	return n.write(func() error {
		return n.conn.WriteMessage(websocket.PingMessage, nil)
	})
}

func (n *socketNavigator) write(fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return fn()
}

// upgrader keeps gorilla's default same-origin check.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Navigation keeps an open page inside its gates (GET /ws/navigation). The
// page reports its route with ?route= and later "route" messages; the server
// pushes "navigate" messages whenever the session moves the page out of
// bounds.
func (h *Handler) Navigation(c echo.Context) error {
	store := h.Resolve(c)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Debug("navigation upgrade failed", slog.Any("error", err))
		return nil
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	nav := &socketNavigator{conn: conn}
	enforcer := guard.NewEnforcer(store, h.guard.Policy(), h.routes, nav, c.QueryParam("route"))

	go func() {
		defer cancel()
		if err := enforcer.Run(ctx); err != nil {
			slog.Debug("navigation enforcer stopped",
				slog.String("browser_id", store.BrowserID()),
				slog.Any("error", err),
			)
		}
		// Unblock the read loop.
		_ = conn.Close()
	}()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := nav.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, context.Canceled) {
				slog.Debug("navigation socket closed", slog.Any("error", err))
			}
			return nil
		}
		if msg.Type != "route" {
			continue
		}
		if err := enforcer.SetRoute(ctx, msg.Path); err != nil {
			return nil
		}
	}
}
