package server

import (
	"gorahrib/internal/models"
	"gorahrib/internal/service"

	"github.com/gofiber/fiber/v2"
)

type commentBody struct {
	Content string `json:"content"`
}

// commentTarget reads :id and, when withComment is set, :commentId. On a
// malformed parameter the 400 response is already written.
func (s *Server) commentTarget(c *fiber.Ctx, withComment bool) (postID, commentID uint, ok bool) {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return 0, 0, false
	}
	if withComment {
		if commentID, err = s.parseID(c, "commentId"); err != nil {
			return 0, 0, false
		}
	}
	return postID, commentID, true
}

func parseCommentBody(c *fiber.Ctx) (string, bool) {
	var body commentBody
	if err := c.BodyParser(&body); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
		return "", false
	}
	return body.Content, true
}

// GetComments handles GET /api/forum/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, _, ok := s.commentTarget(c, false)
	if !ok {
		return nil
	}
	comments, err := s.commentService.ListComments(c.UserContext(), postID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/forum/posts/:id/comments
// @Summary Comment on a post
// @Tags forum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body commentBody true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /forum/posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, _, ok := s.commentTarget(c, false)
	if !ok {
		return nil
	}
	content, ok := parseCommentBody(c)
	if !ok {
		return nil
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:  currentUserID(c),
		PostID:  postID,
		Content: content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/forum/posts/:id/comments/:commentId.
// Only the author may edit.
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	postID, commentID, ok := s.commentTarget(c, true)
	if !ok {
		return nil
	}
	content, ok := parseCommentBody(c)
	if !ok {
		return nil
	}

	comment, err := s.commentService.UpdateComment(c.UserContext(), service.UpdateCommentInput{
		UserID:    currentUserID(c),
		PostID:    postID,
		CommentID: commentID,
		Content:   content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/forum/posts/:id/comments/:commentId.
// The comment author and the post owner may delete.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	postID, commentID, ok := s.commentTarget(c, true)
	if !ok {
		return nil
	}
	in := service.DeleteCommentInput{UserID: currentUserID(c), PostID: postID, CommentID: commentID}
	if _, err := s.commentService.DeleteComment(c.UserContext(), in); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
