package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"gorahrib/internal/middleware"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

type socketSet map[*Client]struct{}

// Hub tracks the sockets each hiker has open on this instance. Delivery
// across instances goes through the Notifier, presence through Presence.
type Hub struct {
	mu       sync.RWMutex
	sockets  map[uint]socketSet
	open     int
	presence *Presence
}

// NewHub returns an empty hub. rdb may be nil, in which case presence is
// local to this process.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		sockets:  make(map[uint]socketSet),
		presence: NewPresence(rdb, PresenceConfig{}),
	}
}

func (h *Hub) Name() string { return "notifications" }

func (h *Hub) admit(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.open >= maxTotalConns {
		return nil, ErrServerFull
	}
	set := h.sockets[userID]
	if len(set) >= maxConnsPerUser {
		return nil, ErrUserFull
	}
	if set == nil {
		set = make(socketSet)
		h.sockets[userID] = set
	}
	client := NewClient(h, conn, userID)
	set[client] = struct{}{}
	h.open++
	return client, nil
}

// Register adds a socket for userID and marks the user online. conn may be
// nil in tests.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	client, err := h.admit(userID, conn)
	if err != nil {
		return nil, err
	}
	h.presence.Register(context.Background(), userID)
	return client, nil
}

func (h *Hub) release(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.sockets[client.UserID]
	if !ok {
		return false
	}
	_, known := set[client]
	delete(set, client)
	if len(set) == 0 {
		delete(h.sockets, client.UserID)
	}
	if known {
		h.open--
	}
	return known
}

// UnregisterClient removes the socket. Calling it twice is a no-op.
func (h *Hub) UnregisterClient(client *Client) {
	if h.release(client) {
		h.presence.Unregister(client.UserID)
	}
}

// Touch marks activity on one of the user's sockets.
func (h *Hub) Touch(userID uint) {
	h.presence.Touch(context.Background(), userID)
}

// Broadcast queues message on every socket the user has on this instance.
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.sockets[userID] {
		client.TrySend([]byte(message))
	}
}

// Connections returns how many sockets are open on this instance.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.open
}

func (h *Hub) IsOnline(ctx context.Context, userID uint) bool {
	return h.presence.IsOnline(ctx, userID)
}

// OnlineAmong filters ids down to the users that are online.
func (h *Hub) OnlineAmong(ctx context.Context, ids []uint) []uint {
	return h.presence.OnlineAmong(ctx, ids)
}

// StartWiring forwards every event published through n to local sockets.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.Subscribe(ctx, h.Broadcast)
}

// Shutdown sends a going-away frame to every socket and forgets them.
func (h *Hub) Shutdown(_ context.Context) error {
	h.presence.Stop()

	h.mu.Lock()
	sockets := h.sockets
	h.sockets = make(map[uint]socketSet)
	h.open = 0
	h.mu.Unlock()

	goingAway := websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")
	for userID, set := range sockets {
		for client := range set {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage, goingAway); err != nil {
				middleware.Logger.Debug("websocket close frame failed",
					slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			}
			_ = client.Conn.Close()
		}
	}
	return nil
}
