package server

import (
	"gorahrib/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetChecklist handles GET /api/checklist
// @Summary My checklist
// @Description Wishlist and visited peaks of the current user
// @Tags checklist
// @Produce json
// @Security BearerAuth
// @Param status query string false "Wishlist or Visited"
// @Success 200 {array} models.ChecklistItem
// @Router /checklist [get]
func (s *Server) GetChecklist(c *fiber.Ctx) error {
	items, err := s.checklistService.List(c.UserContext(), currentUserID(c), models.ChecklistStatus(c.Query("status")))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(items)
}

// AddToChecklist handles POST /api/checklist/:peakId
// @Summary Add a peak to the wishlist
// @Tags checklist
// @Produce json
// @Security BearerAuth
// @Param peakId path int true "Peak ID"
// @Success 201 {object} models.ChecklistItem
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /checklist/{peakId} [post]
func (s *Server) AddToChecklist(c *fiber.Ctx) error {
	peakID, err := s.parseID(c, "peakId")
	if err != nil {
		return nil
	}
	item, err := s.checklistService.Add(c.UserContext(), currentUserID(c), peakID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// MarkPeakVisited handles PUT /api/checklist/:peakId/visit
// @Summary Mark a peak visited
// @Description Moves a wishlist item to Visited and returns any newly unlocked achievements
// @Tags checklist
// @Produce json
// @Security BearerAuth
// @Param peakId path int true "Peak ID"
// @Success 200 {object} service.VisitResult
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /checklist/{peakId}/visit [put]
func (s *Server) MarkPeakVisited(c *fiber.Ctx) error {
	peakID, err := s.parseID(c, "peakId")
	if err != nil {
		return nil
	}
	result, err := s.checklistService.Visit(c.UserContext(), currentUserID(c), peakID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}

// AddPeakPictures handles PUT /api/checklist/:peakId/pictures
// @Summary Add pictures to a visited peak
// @Tags checklist
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param peakId path int true "Peak ID"
// @Param pictures formData file true "One to three pictures"
// @Success 200 {object} models.ChecklistItem
// @Failure 400 {object} models.ErrorResponse
// @Router /checklist/{peakId}/pictures [put]
func (s *Server) AddPeakPictures(c *fiber.Ctx) error {
	peakID, err := s.parseID(c, "peakId")
	if err != nil {
		return nil
	}
	files, err := readUploads(c, "pictures")
	if err != nil {
		return respondServiceError(c, err)
	}
	item, err := s.checklistService.AddPictures(c.UserContext(), currentUserID(c), peakID, files)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(item)
}

// RemoveFromChecklist handles DELETE /api/checklist/:peakId
// @Summary Remove a peak from the checklist
// @Description Revokes achievements the user no longer qualifies for
// @Tags checklist
// @Produce json
// @Security BearerAuth
// @Param peakId path int true "Peak ID"
// @Success 200 {object} service.RemoveResult
// @Failure 404 {object} models.ErrorResponse
// @Router /checklist/{peakId} [delete]
func (s *Server) RemoveFromChecklist(c *fiber.Ctx) error {
	peakID, err := s.parseID(c, "peakId")
	if err != nil {
		return nil
	}
	result, err := s.checklistService.Remove(c.UserContext(), currentUserID(c), peakID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}
