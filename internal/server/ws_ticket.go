package server

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gorahrib/internal/middleware"
	"gorahrib/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	wsTicketTTL = 30 * time.Second
	// How long a redeemed ticket still authenticates the same handshake.
	handshakeGrace = 10 * time.Second
)

func wsTicketKey(ticket string) string {
	return "ws_ticket:" + ticket
}

// handshakeTickets remembers tickets taken out of redis for handshakeGrace.
// Fiber runs the handler chain twice for one websocket upgrade, and the
// second pass must see the same user.
type handshakeTickets struct {
	mu      sync.Mutex
	entries map[string]redeemedTicket
}

type redeemedTicket struct {
	userID uint
	at     time.Time
}

func (h *handshakeTickets) lookup(ticket string, now time.Time) (uint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[ticket]
	if !ok || now.Sub(e.at) >= handshakeGrace {
		return 0, false
	}
	return e.userID, true
}

func (h *handshakeTickets) remember(ticket string, userID uint, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.entries == nil {
		h.entries = make(map[string]redeemedTicket)
	}
	for k, e := range h.entries {
		if now.Sub(e.at) >= handshakeGrace {
			delete(h.entries, k)
		}
	}
	h.entries[ticket] = redeemedTicket{userID: userID, at: now}
}

// forget drops a ticket once its socket is established.
func (h *handshakeTickets) forget(ticket string) {
	h.mu.Lock()
	delete(h.entries, ticket)
	h.mu.Unlock()
}

// redeemWSTicket returns the user a ticket was issued to. GETDEL makes the
// ticket single-use across instances.
func (s *Server) redeemWSTicket(ctx context.Context, ticket string) (uint, bool) {
	now := time.Now()
	if id, ok := s.handshakes.lookup(ticket, now); ok {
		return id, true
	}

	val, err := s.redis.GetDel(ctx, wsTicketKey(ticket)).Result()
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseUint(val, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	s.handshakes.remember(ticket, uint(id), now)
	return uint(id), true
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a websocket ticket
// @Description Returns a single-use ticket valid for 30 seconds. Pass it as ?ticket= when opening /api/ws.
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 401 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Realtime notifications are unavailable",
		})
	}
	userID := currentUserID(c)
	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), wsTicketKey(ticket),
		strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "failed to store websocket ticket",
			slog.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}
