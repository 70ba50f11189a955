package repository

import (
	"context"

	"gorahrib/internal/models"

	"gorm.io/gorm"
)

// LikeRepository stores PostLike rows, the source of truth for ForumPost.Likes.
type LikeRepository interface {
	WithTx(tx *gorm.DB) LikeRepository
	Exists(ctx context.Context, postID, userID uint) (bool, error)
	Create(ctx context.Context, postID, userID uint) error
	Delete(ctx context.Context, postID, userID uint) (bool, error)
	DeleteByPosts(ctx context.Context, postIDs []uint) error
	CountByPostForUser(ctx context.Context, userID uint) (map[uint]int, error)
	DeleteByUser(ctx context.Context, userID uint) error
}

type likeRepository struct {
	scope
}

// NewLikeRepository returns a new LikeRepository implementation.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{scope{db: db}}
}

func (r *likeRepository) WithTx(tx *gorm.DB) LikeRepository {
	return &likeRepository{r.bind(tx)}
}

func (r *likeRepository) Exists(ctx context.Context, postID, userID uint) (bool, error) {
	var n int64
	if err := r.reader(ctx).Model(&models.PostLike{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *likeRepository) Create(ctx context.Context, postID, userID uint) error {
	if err := r.writer(ctx).Create(&models.PostLike{PostID: postID, UserID: userID}).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Post already liked")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Delete reports whether a like was removed.
func (r *likeRepository) Delete(ctx context.Context, postID, userID uint) (bool, error) {
	res := r.writer(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *likeRepository) DeleteByPosts(ctx context.Context, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	if err := r.writer(ctx).Where("post_id IN ?", postIDs).Delete(&models.PostLike{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// CountByPostForUser returns, per post, whether the user liked it (0 or 1).
func (r *likeRepository) CountByPostForUser(ctx context.Context, userID uint) (map[uint]int, error) {
	return countByPost(r.reader(ctx).Model(&models.PostLike{}), userID)
}

func (r *likeRepository) DeleteByUser(ctx context.Context, userID uint) error {
	if err := r.writer(ctx).Where("user_id = ?", userID).Delete(&models.PostLike{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
