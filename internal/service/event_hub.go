package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"dcabot/backend/internal/model"
	"dcabot/backend/internal/util"
	"dcabot/backend/pkg/logger"
	"dcabot/backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// wsClient is one WebSocket connection of a user
type wsClient struct {
	hub    *EventHub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// EventHub bridges the per-user bot event channels on Redis to the user's
// WebSocket connections. It runs the same on every API instance.
type EventHub struct {
	redis *redis.Client
	log   *logger.Logger

	mu        sync.RWMutex
	userConns map[string]map[*wsClient]struct{}

	upgrader websocket.Upgrader
}

// NewEventHub creates a hub. allowedOrigins empty or "*" accepts any origin.
func NewEventHub(redisClient *redis.Client, allowedOrigins []string) *EventHub {
	h := &EventHub{
		redis:     redisClient,
		log:       logger.GetLogger(),
		userConns: make(map[string]map[*wsClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Run forwards published events until ctx is cancelled
func (h *EventHub) Run(ctx context.Context) error {
	prefix := redis.BotEventsChannel("")
	pubsub := h.redis.PSubscribe(ctx, redis.BotEventsChannel("*"))
	defer pubsub.Close()

	// Wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID := strings.TrimPrefix(msg.Channel, prefix)
			h.SendToUser(userID, model.MessageTypeBotEvent, json.RawMessage(msg.Payload))
		}
	}
}

// SendToUser queues a message on every connection of the user. Slow
// connections drop messages rather than block the hub.
func (h *EventHub) SendToUser(userID string, kind model.WSMessageType, payload json.RawMessage) {
	data, err := json.Marshal(model.WSMessage{Type: kind, Payload: payload})
	if err != nil {
		h.log.Errorf("Failed to marshal WS message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.userConns[userID] {
		select {
		case client.send <- data:
		default:
		}
	}
}

// Connections returns the number of open connections of the user
func (h *EventHub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID])
}

func (h *EventHub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.userConns[c.userID]
	if !ok {
		conns = make(map[*wsClient]struct{})
		h.userConns[c.userID] = conns
	}
	conns[c] = struct{}{}
	h.log.Debugf("WS client registered: user=%s", c.userID)
}

func (h *EventHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.userConns[c.userID]
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.userConns, c.userID)
	}
	h.log.Debugf("WS client unregistered: user=%s", c.userID)
}

// ServeWS upgrades an authenticated request and streams the user's events
func (h *EventHub) ServeWS(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		util.SendError(c, util.ErrUnauthorized("User not authenticated"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorf("Failed to upgrade websocket: %v", err)
		return
	}

	client := &wsClient{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 256),
	}
	h.register(client)

	go client.writePump()
	go client.readPump()
}

// readPump only services control frames; clients send nothing else
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnf("WS error: %v", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
