package server

import (
	"gorahrib/internal/featureflags"
	"gorahrib/internal/models"
	"gorahrib/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/forum/feed
// @Summary Friends feed
// @Description Posts of the current user and accepted friends, newest first
// @Tags forum
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} service.FeedPage
// @Router /forum/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	feed, err := s.postService.GetFeed(c.UserContext(), currentUserID(c), c.QueryInt("page", 1), c.QueryInt("limit", 10))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(feed)
}

// GetMyPosts handles GET /api/forum/posts/me
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	userID := currentUserID(c)
	page := parsePagination(c, 20)
	posts, err := s.postService.GetUserPosts(c.UserContext(), userID, page.Limit, page.Offset, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetUserPosts handles GET /api/forum/users/:userId/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)
	posts, err := s.postService.GetUserPosts(c.UserContext(), userID, page.Limit, page.Offset, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/forum/posts/:id
// @Summary Post details with comments
// @Tags forum
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{post=models.ForumPost,comments=[]models.Comment}
// @Failure 404 {object} models.ErrorResponse
// @Router /forum/posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	post, err := s.postService.GetPost(ctx, postID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	comments, err := s.commentService.ListComments(ctx, postID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"post":     post,
		"comments": comments,
	})
}

// CreatePost handles POST /api/forum/posts
// @Summary Create a hike post
// @Description Accepts JSON or multipart. Up to five pictures in total, new uploads plus pictures shared from the author's visited peak.
// @Tags forum
// @Accept json,multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param content formData string true "Content"
// @Param peakId formData int false "Peak the post is about"
// @Param sharedPictures formData []string false "Pictures from the peak checklist item"
// @Param pictures formData file false "New pictures"
// @Success 201 {object} models.ForumPost
// @Failure 400 {object} models.ErrorResponse
// @Router /forum/posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Title          string   `json:"title" form:"title"`
		Content        string   `json:"content" form:"content"`
		PeakID         uint     `json:"peakId" form:"peakId"`
		SharedPictures []string `json:"sharedPictures" form:"sharedPictures"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	files, err := readUploads(c, "pictures")
	if err != nil {
		return respondServiceError(c, err)
	}
	if len(files) > 0 && !s.flagEnabled(c, featureflags.ForumPictures) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Picture uploads are disabled"))
	}

	in := service.CreatePostInput{
		UserID:         currentUserID(c),
		Title:          req.Title,
		Content:        req.Content,
		Pictures:       files,
		SharedPictures: req.SharedPictures,
	}
	if req.PeakID != 0 {
		peakID := req.PeakID
		in.PeakID = &peakID
	}

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/forum/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:  currentUserID(c),
		PostID:  postID,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/forum/posts/:id
// @Summary Delete a post
// @Description Owner only. Achievement announcements cannot be deleted by hand.
// @Tags forum
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /forum/posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), postID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/forum/posts/:id/like
// @Summary Like or unlike a post
// @Tags forum
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{liked=bool}
// @Failure 404 {object} models.ErrorResponse
// @Router /forum/posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	liked, err := s.postService.ToggleLike(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"liked": liked})
}
