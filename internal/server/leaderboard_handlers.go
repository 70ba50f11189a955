package server

import "github.com/gofiber/fiber/v2"

// GetGlobalLeaderboard handles GET /api/leaderboard
// @Summary Global leaderboard
// @Description Users with at least one climbed peak, ranked by climbed peaks. Ties share a rank.
// @Tags leaderboard
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.LeaderboardEntry
// @Router /leaderboard [get]
func (s *Server) GetGlobalLeaderboard(c *fiber.Ctx) error {
	entries, err := s.leaderboardService.Global(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(entries)
}

// GetFriendsLeaderboard handles GET /api/leaderboard/friends
func (s *Server) GetFriendsLeaderboard(c *fiber.Ctx) error {
	entries, err := s.leaderboardService.Friends(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(entries)
}
