package repository

import (
	"context"

	"gorahrib/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	WithTx(tx *gorm.DB) CommentRepository
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]models.Comment, error)
	UpdateContent(ctx context.Context, id uint, content string) error
	Delete(ctx context.Context, id uint) error
	DeleteByPosts(ctx context.Context, postIDs []uint) error
	CountByPostForUser(ctx context.Context, userID uint) (map[uint]int, error)
	DeleteByUser(ctx context.Context, userID uint) error
}

// commentRepository implements CommentRepository
type commentRepository struct {
	scope
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{scope{db: db}}
}

func (r *commentRepository) WithTx(tx *gorm.DB) CommentRepository {
	return &commentRepository{r.bind(tx)}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.writer(ctx).Omit("User").Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.reader(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, models.NewNotFoundError("Comment", id))
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	comments := []models.Comment{}
	if err := r.reader(ctx).Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	if err := r.writer(ctx).Model(&models.Comment{}).Where("id = ?", id).
		Update("content", content).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	res := r.writer(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) DeleteByPosts(ctx context.Context, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	if err := r.writer(ctx).Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// CountByPostForUser returns how many comments the user left on each post.
func (r *commentRepository) CountByPostForUser(ctx context.Context, userID uint) (map[uint]int, error) {
	return countByPost(r.reader(ctx).Model(&models.Comment{}), userID)
}

func (r *commentRepository) DeleteByUser(ctx context.Context, userID uint) error {
	if err := r.writer(ctx).Where("user_id = ?", userID).Delete(&models.Comment{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func countByPost(q *gorm.DB, userID uint) (map[uint]int, error) {
	var rows []struct {
		PostID uint
		Total  int
	}
	if err := q.Select("post_id, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	out := make(map[uint]int, len(rows))
	for _, row := range rows {
		out[row.PostID] = row.Total
	}
	return out, nil
}
