package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags handles GET /api/feature-flags
// @Summary Feature flags for the current user
// @Tags meta
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]bool
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.featureFlags.Snapshot(currentUserID(c)))
}

func (s *Server) flagEnabled(c *fiber.Ctx, name string) bool {
	return s.featureFlags.Enabled(name, currentUserID(c))
}
