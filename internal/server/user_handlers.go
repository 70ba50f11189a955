package server

import (
	"gorahrib/internal/models"
	"gorahrib/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Public profile of a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// SearchUsers handles GET /api/users/search?q=
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	users, err := s.userService.SearchUsers(c.UserContext(), c.Query("q"), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(users)
}

// UpdateUsername handles PUT /api/users/me/username
// @Summary Change username
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{username=string} true "New username"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/me/username [put]
func (s *Server) UpdateUsername(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	user, err := s.userService.UpdateUsername(c.UserContext(), currentUserID(c), req.Username)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// ChangePassword handles PUT /api/users/me/password
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := s.userService.ChangePassword(c.UserContext(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password changed"})
}

// GetMyVisitedPeaks handles GET /api/users/me/visited-peaks
func (s *Server) GetMyVisitedPeaks(c *fiber.Ctx) error {
	peaks, err := s.userService.VisitedPeaks(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(peaks)
}

// GetMyChecklistPeaks handles GET /api/users/me/checklist-peaks
func (s *Server) GetMyChecklistPeaks(c *fiber.Ctx) error {
	peaks, err := s.userService.ChecklistPeaks(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(peaks)
}

// UpdateProfilePicture handles PUT /api/users/me/profile-picture
// @Summary Upload a profile picture
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param picture formData file true "Picture"
// @Param cropX formData number false "Horizontal offset"
// @Param cropY formData number false "Vertical offset"
// @Param cropZoom formData number false "Zoom"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me/profile-picture [put]
func (s *Server) UpdateProfilePicture(c *fiber.Ctx) error {
	files, err := readUploads(c, "picture")
	if err != nil {
		return respondServiceError(c, err)
	}
	if len(files) != 1 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Exactly one picture is required"))
	}

	var crop struct {
		X    float64 `form:"cropX"`
		Y    float64 `form:"cropY"`
		Zoom float64 `form:"cropZoom"`
	}
	if err := c.BodyParser(&crop); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid crop values"))
	}

	user, err := s.userService.UpdateProfilePicture(c.UserContext(), currentUserID(c), files[0],
		service.ProfileCrop{X: crop.X, Y: crop.Y, Zoom: crop.Zoom})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// DeleteProfilePicture handles DELETE /api/users/me/profile-picture
func (s *Server) DeleteProfilePicture(c *fiber.Ctx) error {
	user, err := s.userService.DeleteProfilePicture(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}
