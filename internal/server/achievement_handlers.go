package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetAchievementCatalog handles GET /api/achievements
// @Summary Achievement catalog
// @Tags achievements
// @Produce json
// @Success 200 {array} models.Achievement
// @Router /achievements [get]
func (s *Server) GetAchievementCatalog(c *fiber.Ctx) error {
	catalog, err := s.achievementService.Catalog(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(catalog)
}

// GetMyAchievements handles GET /api/achievements/me
// @Summary My achievements
// @Tags achievements
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserAchievement
// @Router /achievements/me [get]
func (s *Server) GetMyAchievements(c *fiber.Ctx) error {
	list, err := s.achievementService.UserAchievements(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(list)
}

// GetUserAchievements handles GET /api/achievements/users/:userId
// @Summary Achievements of a user
// @Tags achievements
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {array} models.UserAchievement
// @Failure 404 {object} models.ErrorResponse
// @Router /achievements/users/{userId} [get]
func (s *Server) GetUserAchievements(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	list, err := s.achievementService.UserAchievements(c.UserContext(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(list)
}
