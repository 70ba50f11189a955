package server

import (
	"gorahrib/internal/featureflags"
	"gorahrib/internal/models"

	"github.com/gofiber/fiber/v2"
)

// friendView is a friend with their realtime presence.
type friendView struct {
	models.User
	Online bool `json:"online"`
}

// GetFriends handles GET /api/friends
// @Summary List accepted friends
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} friendView
// @Router /friends [get]
func (s *Server) GetFriends(c *fiber.Ctx) error {
	ctx := c.UserContext()
	friends, err := s.friendService.GetFriends(ctx, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	ids := make([]uint, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.ID)
	}
	online := make(map[uint]bool, len(ids))
	if s.flagEnabled(c, featureflags.FriendPresence) {
		for _, id := range s.hub.OnlineAmong(ctx, ids) {
			online[id] = true
		}
	}

	views := make([]friendView, 0, len(friends))
	for _, f := range friends {
		views = append(views, friendView{User: f, Online: online[f.ID]})
	}
	return c.JSON(views)
}

// SendFriendRequest handles POST /api/friends/requests/:userId
// @Summary Send a friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param userId path int true "Target user ID"
// @Success 201 {object} models.Friendship
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /friends/requests/{userId} [post]
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	friendship, err := s.friendService.SendFriendRequest(c.UserContext(), currentUserID(c), targetUserID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(friendship)
}

// GetPendingRequests handles GET /api/friends/requests
func (s *Server) GetPendingRequests(c *fiber.Ctx) error {
	requests, err := s.friendService.GetPendingRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(requests)
}

// GetSentRequests handles GET /api/friends/requests/sent
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	requests, err := s.friendService.GetSentRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(requests)
}

// AcceptFriendRequest handles POST /api/friends/requests/:requestId/accept
// @Summary Accept a friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param requestId path int true "Request ID"
// @Success 200 {object} models.Friendship
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /friends/requests/{requestId}/accept [post]
func (s *Server) AcceptFriendRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}
	friendship, err := s.friendService.AcceptFriendRequest(c.UserContext(), currentUserID(c), requestID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(friendship)
}

// RejectFriendRequest handles POST /api/friends/requests/:requestId/reject.
// The sender may use it to cancel their own request.
func (s *Server) RejectFriendRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}
	friendship, err := s.friendService.RejectFriendRequest(c.UserContext(), currentUserID(c), requestID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(friendship)
}

// GetFriendshipStatus handles GET /api/friends/status/:userId
func (s *Server) GetFriendshipStatus(c *fiber.Ctx) error {
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	status, requestID, _, err := s.friendService.GetFriendshipStatus(c.UserContext(), currentUserID(c), targetUserID)
	if err != nil {
		return respondServiceError(c, err)
	}
	resp := fiber.Map{"status": status}
	if requestID != 0 {
		resp["request_id"] = requestID
	}
	return c.JSON(resp)
}

// GetFriendsPeaksMap handles GET /api/friends/peaks-map
// @Summary Peaks climbed by friends
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.PeakVisitors
// @Router /friends/peaks-map [get]
func (s *Server) GetFriendsPeaksMap(c *fiber.Ctx) error {
	peaks, err := s.friendService.GetFriendsPeaksMap(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(peaks)
}

// GetFriendProfile handles GET /api/friends/:userId/profile
// @Summary Friend profile
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param userId path int true "Friend user ID"
// @Success 200 {object} service.FriendProfile
// @Failure 403 {object} models.ErrorResponse
// @Router /friends/{userId}/profile [get]
func (s *Server) GetFriendProfile(c *fiber.Ctx) error {
	friendID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	profile, err := s.friendService.GetFriendProfile(c.UserContext(), currentUserID(c), friendID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// RemoveFriend handles DELETE /api/friends/:userId
func (s *Server) RemoveFriend(c *fiber.Ctx) error {
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	if _, err := s.friendService.RemoveFriend(c.UserContext(), currentUserID(c), targetUserID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
