package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/Spotibuds/User/internal/realtime"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// wsFrame is the outbound wire format: a named event plus its payload.
type wsFrame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// clientFrame is the inbound wire format for session-scoped client actions.
type clientFrame struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id,omitempty"`
}

const (
	actionEnterConversation = "enter_conversation"
	actionLeaveConversation = "leave_conversation"
)

// wsConnection adapts a websocket connection to the registry's Sender
// contract. Gorilla allows a single concurrent writer, so sends serialize on
// the mutex.
type wsConnection struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (c *wsConnection) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(wsFrame{Event: event, Payload: payload})
}

// WSHandler upgrades authenticated requests to websocket sessions and binds
// them to the presence registry and active-viewer tracker.
type WSHandler struct {
	registry     *realtime.Registry
	viewers      *realtime.ViewerTracker
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongWait     time.Duration
}

// NewWSHandler creates a new WSHandler with the given keepalive intervals.
func NewWSHandler(registry *realtime.Registry, viewers *realtime.ViewerTracker, pingInterval, pongWait time.Duration) *WSHandler {
	return &WSHandler{
		registry: registry,
		viewers:  viewers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		pongWait:     pongWait,
	}
}

// RegisterWSRoutes registers the websocket endpoint
func (h *WSHandler) RegisterWSRoutes(g *echo.Group) {
	g.GET("/ws", h.Serve)
}

// Serve runs one websocket session: register on connect, consume client
// frames until the connection drops, then clean up unconditionally.
func (h *WSHandler) Serve(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	userID := identityString(currentUserID)

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	connectionID := uuid.New().String()
	sender := &wsConnection{conn: conn, writeTimeout: 10 * time.Second}
	h.registry.Connect(userID, connectionID, sender)

	logrus.WithFields(logrus.Fields{
		"user_id":       userID,
		"connection_id": connectionID,
	}).Info("websocket session opened")

	done := make(chan struct{})
	go h.keepalive(conn, done)

	// Cleanup must run no matter how the read loop exits. The tracker side is
	// handled by the presence hook once the user's last connection drops.
	defer func() {
		close(done)
		h.registry.Disconnect(connectionID)
		conn.Close()
		logrus.WithFields(logrus.Fields{
			"user_id":       userID,
			"connection_id": connectionID,
		}).Info("websocket session closed")
	}()

	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.pongWait))
		return nil
	})

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Debugf("websocket read ended for user %s: %v", userID, err)
			}
			return nil
		}

		switch frame.Action {
		case actionEnterConversation:
			if frame.ConversationID != "" {
				h.viewers.Enter(frame.ConversationID, userID)
			}
		case actionLeaveConversation:
			if frame.ConversationID != "" {
				h.viewers.Leave(frame.ConversationID, userID)
			}
		}
	}
}

func (h *WSHandler) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
