package server

import (
	"github.com/gofiber/fiber/v2"
)

// ListPeaks handles GET /api/peaks
// @Summary List peaks
// @Description Paginated peak catalog, optionally filtered by mountain range
// @Tags peaks
// @Produce json
// @Param range query string false "Mountain range"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Peak
// @Failure 400 {object} models.ErrorResponse
// @Router /peaks [get]
func (s *Server) ListPeaks(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	peaks, err := s.peakService.ListPeaks(c.UserContext(), c.Query("range"), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(peaks)
}

// SearchPeaks handles GET /api/peaks/search?q=
// @Summary Search peaks by name
// @Tags peaks
// @Produce json
// @Param q query string true "Name fragment"
// @Success 200 {array} models.Peak
// @Failure 400 {object} models.ErrorResponse
// @Router /peaks/search [get]
func (s *Server) SearchPeaks(c *fiber.Ctx) error {
	peaks, err := s.peakService.SearchPeaks(c.UserContext(), c.Query("q"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(peaks)
}

// GetPeak handles GET /api/peaks/:id
// @Summary Get a peak
// @Tags peaks
// @Produce json
// @Param id path int true "Peak ID"
// @Success 200 {object} models.Peak
// @Failure 404 {object} models.ErrorResponse
// @Router /peaks/{id} [get]
func (s *Server) GetPeak(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	peak, err := s.peakService.GetPeak(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(peak)
}
