package repository

import (
	"context"

	"gorahrib/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for forum post data operations
type PostRepository interface {
	WithTx(tx *gorm.DB) PostRepository
	Create(ctx context.Context, post *models.ForumPost) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.ForumPost, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int, viewerID uint) ([]models.ForumPost, error)
	Feed(ctx context.Context, authorIDs []uint, limit, offset int, viewerID uint) ([]models.ForumPost, int64, error)
	UpdateContent(ctx context.Context, id uint, title, content string) error
	Delete(ctx context.Context, id uint) error
	Announcements(ctx context.Context, userID uint, achievementIDs []uint) ([]models.ForumPost, error)
	DeleteByIDs(ctx context.Context, ids []uint) error
	OwnedBy(ctx context.Context, userID uint) ([]models.ForumPost, error)
	AdjustLikes(ctx context.Context, id uint, delta int) error
	AdjustCommentCount(ctx context.Context, id uint, delta int) error
	Count(ctx context.Context) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	scope
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{scope{db: db}}
}

func (r *postRepository) WithTx(tx *gorm.DB) PostRepository {
	return &postRepository{r.bind(tx)}
}

func (r *postRepository) Create(ctx context.Context, post *models.ForumPost) error {
	if err := r.writer(ctx).Omit("User", "Peak").Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.ForumPost, error) {
	var post models.ForumPost
	if err := r.reader(ctx).Preload("User").Preload("Peak").First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, models.NewNotFoundError("Post", id))
	}
	if err := r.markLiked(ctx, viewerID, []*models.ForumPost{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListByUser(ctx context.Context, userID uint, limit, offset int, viewerID uint) ([]models.ForumPost, error) {
	limit, offset = clampPage(limit, offset, 20, 100)
	posts := []models.ForumPost{}
	if err := r.reader(ctx).Preload("User").Preload("Peak").
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, r.markLikedSlice(ctx, viewerID, posts)
}

// Feed returns one page of posts by authorIDs plus the total number of such posts.
func (r *postRepository) Feed(ctx context.Context, authorIDs []uint, limit, offset int, viewerID uint) ([]models.ForumPost, int64, error) {
	posts := []models.ForumPost{}
	if len(authorIDs) == 0 {
		return posts, 0, nil
	}
	limit, offset = clampPage(limit, offset, 10, 50)

	var total int64
	if err := r.reader(ctx).Model(&models.ForumPost{}).
		Where("user_id IN ?", authorIDs).
		Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if err := r.reader(ctx).Preload("User").Preload("Peak").
		Where("user_id IN ?", authorIDs).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, r.markLikedSlice(ctx, viewerID, posts)
}

func (r *postRepository) UpdateContent(ctx context.Context, id uint, title, content string) error {
	if err := r.writer(ctx).Model(&models.ForumPost{}).Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "content": content}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.writer(ctx).Delete(&models.ForumPost{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

// Announcements returns the user's posts linked to any of achievementIDs.
func (r *postRepository) Announcements(ctx context.Context, userID uint, achievementIDs []uint) ([]models.ForumPost, error) {
	posts := []models.ForumPost{}
	if len(achievementIDs) == 0 {
		return posts, nil
	}
	if err := r.reader(ctx).
		Where("user_id = ? AND achievement_id IN ?", userID, achievementIDs).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) DeleteByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.writer(ctx).Where("id IN ?", ids).Delete(&models.ForumPost{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// OwnedBy returns the id and pictures of every post by the user.
func (r *postRepository) OwnedBy(ctx context.Context, userID uint) ([]models.ForumPost, error) {
	posts := []models.ForumPost{}
	if err := r.reader(ctx).Select("id", "pictures").Where("user_id = ?", userID).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) AdjustLikes(ctx context.Context, id uint, delta int) error {
	return r.adjust(ctx, id, "likes", delta)
}

func (r *postRepository) AdjustCommentCount(ctx context.Context, id uint, delta int) error {
	return r.adjust(ctx, id, "comment_count", delta)
}

func (r *postRepository) adjust(ctx context.Context, id uint, column string, delta int) error {
	if delta == 0 {
		return nil
	}
	res := r.writer(ctx).Model(&models.ForumPost{}).Where("id = ?", id).
		UpdateColumn(column, counterUpdate(r.db, column, delta))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.reader(ctx).Model(&models.ForumPost{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *postRepository) markLikedSlice(ctx context.Context, viewerID uint, posts []models.ForumPost) error {
	ptrs := make([]*models.ForumPost, len(posts))
	for i := range posts {
		ptrs[i] = &posts[i]
	}
	return r.markLiked(ctx, viewerID, ptrs)
}

// markLiked fills the per-viewer Liked flag with one query.
func (r *postRepository) markLiked(ctx context.Context, viewerID uint, posts []*models.ForumPost) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	var liked []uint
	if err := r.reader(ctx).Model(&models.PostLike{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &liked).Error; err != nil {
		return models.NewInternalError(err)
	}
	set := make(map[uint]bool, len(liked))
	for _, id := range liked {
		set[id] = true
	}
	for _, p := range posts {
		p.Liked = set[p.ID]
	}
	return nil
}
