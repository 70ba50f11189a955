package server

import (
	"context"
	"log/slog"

	"gorahrib/internal/featureflags"
	"gorahrib/internal/middleware"
	"gorahrib/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler returns the handler for GET /api/ws. The connection is
// authenticated by AuthRequired with a ticket from POST /api/ws/ticket and
// receives the user's realtime events.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		ctx := context.Background()
		uid, ok := conn.Locals("userID").(uint)
		if !ok || uid == 0 {
			_ = conn.Close()
			return
		}
		if t, ok := conn.Locals("wsTicket").(string); ok {
			s.handshakes.forget(t)
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration rejected",
				slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		if s.featureFlags.Enabled(featureflags.FriendPresence, uid) {
			s.sendFriendsOnlineSnapshot(ctx, client)
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// sendFriendsOnlineSnapshot queues the ids of the user's friends that are
// currently connected.
func (s *Server) sendFriendsOnlineSnapshot(ctx context.Context, client *notifications.Client) {
	friends, err := s.friendService.GetFriends(ctx, client.UserID)
	if err != nil {
		middleware.Logger.Warn("failed to load friends for online snapshot",
			slog.Uint64("user_id", uint64(client.UserID)), slog.String("error", err.Error()))
		return
	}
	ids := make([]uint, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.ID)
	}
	msg, err := notifications.EncodeEvent(notifications.EventFriendsOnline, map[string]interface{}{
		"user_ids": s.hub.OnlineAmong(ctx, ids),
	})
	if err != nil {
		return
	}
	client.TrySend([]byte(msg))
}
