package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorahrib/internal/database"
	"gorahrib/internal/models"
	"gorahrib/internal/notifications"
	"gorahrib/internal/repository"

	"gorm.io/gorm"
)

const maxCommentLen = 2000

// CommentService manages comments. Adding and deleting a comment changes the
// post's comment_count in the same transaction.
type CommentService struct {
	uow         *database.UnitOfWork
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	publisher   EventPublisher
}

type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

type UpdateCommentInput struct {
	UserID    uint
	PostID    uint
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	UserID    uint
	PostID    uint
	CommentID uint
}

func NewCommentService(
	uow *database.UnitOfWork,
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	publisher EventPublisher,
) *CommentService {
	return &CommentService{
		uow:         uow,
		commentRepo: commentRepo,
		postRepo:    postRepo,
		publisher:   publisher,
	}
}

func validateCommentContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError("Comment content is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return "", models.NewValidationError("Comment too long (max 2000 characters)")
	}
	return content, nil
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}

	var (
		comment *models.Comment
		post    *models.ForumPost
	)
	err = s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		post, err = s.postRepo.WithTx(tx).GetByID(ctx, in.PostID, 0)
		if err != nil {
			return err
		}
		comment = &models.Comment{
			Content: content,
			UserID:  in.UserID,
			PostID:  in.PostID,
		}
		if err := s.commentRepo.WithTx(tx).Create(ctx, comment); err != nil {
			return err
		}
		if err := s.postRepo.WithTx(tx).AdjustCommentCount(ctx, in.PostID, 1); err != nil {
			return err
		}
		comment, err = s.commentRepo.WithTx(tx).GetByID(ctx, comment.ID)
		return err
	})
	err = settle(ctx, "comment_add", err, func() {
		if post.UserID != in.UserID {
			publish(ctx, s.publisher, post.UserID, notifications.EventPostCommented, map[string]interface{}{
				"post_id":    post.ID,
				"comment_id": comment.ID,
				"user_id":    in.UserID,
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

func (s *CommentService) getForPost(ctx context.Context, repo repository.CommentRepository, postID, commentID uint) (*models.Comment, error) {
	comment, err := repo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if postID != 0 && comment.PostID != postID {
		return nil, models.NewNotFoundMessage("Comment not found for this post")
	}
	return comment, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}
	comment, err := s.getForPost(ctx, s.commentRepo, in.PostID, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own comments")
	}

	if err := s.commentRepo.UpdateContent(ctx, comment.ID, content); err != nil {
		return nil, err
	}
	comment.Content = content
	return comment, nil
}

// DeleteComment removes a comment. The comment author and the post owner may
// delete it.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*models.Comment, error) {
	var comment *models.Comment
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		comment, err = s.getForPost(ctx, s.commentRepo.WithTx(tx), in.PostID, in.CommentID)
		if err != nil {
			return err
		}
		if comment.UserID != in.UserID {
			post, err := s.postRepo.WithTx(tx).GetByID(ctx, comment.PostID, 0)
			if err != nil {
				return err
			}
			if post.UserID != in.UserID {
				return models.NewForbiddenError("You can only delete your own comments")
			}
		}
		if err := s.commentRepo.WithTx(tx).Delete(ctx, comment.ID); err != nil {
			return err
		}
		return s.postRepo.WithTx(tx).AdjustCommentCount(ctx, comment.PostID, -1)
	})
	if err := settle(ctx, "comment_delete", err, func() {}); err != nil {
		return nil, err
	}
	return comment, nil
}
