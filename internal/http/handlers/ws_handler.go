package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/events"
	"github.com/influencer-marketplace/backend/internal/middleware"
	"go.uber.org/zap"
)

// WSHub pushes notification events to the connected recipients.
type WSHub struct {
	resolver    middleware.ActorResolver
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	writeMu     sync.Mutex // a websocket.Conn allows one writer at a time
	connections map[uuid.UUID][]*websocket.Conn
}

func NewWSHub(resolver middleware.ActorResolver, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		resolver:    resolver,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[uuid.UUID][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.ChannelNotification, func(event events.Event) {
		for _, id := range events.NotificationRecipients(event) {
			h.SendToUser(id, event)
		}
	})
}

func (h *WSHub) SendToUser(userID uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	for _, conn := range h.connections[userID] {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("ws write failed", zap.Stringer("user_id", userID), zap.Error(err))
		}
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token","kind":"unauthenticated"}`))
		conn.Close()
		return
	}

	actor, err := h.resolver.ResolveActor(tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token","kind":"unauthenticated"}`))
		conn.Close()
		return
	}
	userID := actor.ID

	h.mu.Lock()
	h.connections[userID] = append(h.connections[userID], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[userID]
		for i, c := range conns {
			if c == conn {
				h.connections[userID] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[userID]) == 0 {
			delete(h.connections, userID)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop keeps the connection alive until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
