package repository

import (
	"context"
	"time"

	"gorahrib/internal/models"

	"gorm.io/gorm"
)

// ChecklistRepository stores the user/peak wishlist and visited rows.
type ChecklistRepository interface {
	WithTx(tx *gorm.DB) ChecklistRepository
	Get(ctx context.Context, userID, peakID uint) (*models.ChecklistItem, error)
	Create(ctx context.Context, item *models.ChecklistItem) error
	MarkVisited(ctx context.Context, id uint, at time.Time) error
	SetPictures(ctx context.Context, id uint, pictures models.StringList) error
	Delete(ctx context.Context, id uint) error
	ListByUser(ctx context.Context, userID uint, status models.ChecklistStatus) ([]models.ChecklistItem, error)
	VisitedPeaks(ctx context.Context, userID uint) ([]models.Peak, error)
	VisitedByUsers(ctx context.Context, userIDs []uint) ([]models.ChecklistItem, error)
	DeleteByUser(ctx context.Context, userID uint) ([]models.ChecklistItem, error)
	CountVisited(ctx context.Context) (int64, error)
}

type checklistRepository struct {
	scope
}

// NewChecklistRepository returns a new ChecklistRepository implementation.
func NewChecklistRepository(db *gorm.DB) ChecklistRepository {
	return &checklistRepository{scope{db: db}}
}

func (r *checklistRepository) WithTx(tx *gorm.DB) ChecklistRepository {
	return &checklistRepository{r.bind(tx)}
}

// Get returns (nil, nil) when the peak is not in the user's checklist.
func (r *checklistRepository) Get(ctx context.Context, userID, peakID uint) (*models.ChecklistItem, error) {
	var items []models.ChecklistItem
	if err := r.reader(ctx).
		Where("user_id = ? AND peak_id = ?", userID, peakID).
		Limit(1).
		Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *checklistRepository) Create(ctx context.Context, item *models.ChecklistItem) error {
	if err := r.writer(ctx).Omit("Peak").Create(item).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Peak already in checklist")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// MarkVisited moves a Wishlist row to Visited. It only matches Wishlist rows,
// so a concurrent second call finds nothing to update.
func (r *checklistRepository) MarkVisited(ctx context.Context, id uint, at time.Time) error {
	res := r.writer(ctx).Model(&models.ChecklistItem{}).
		Where("id = ? AND status = ?", id, models.ChecklistWishlist).
		Updates(map[string]interface{}{
			"status":       models.ChecklistVisited,
			"visited_date": at,
		})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("Peak already marked as visited")
	}
	return nil
}

func (r *checklistRepository) SetPictures(ctx context.Context, id uint, pictures models.StringList) error {
	if err := r.writer(ctx).Model(&models.ChecklistItem{}).
		Where("id = ?", id).
		Update("pictures", pictures).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the row. A row already removed by a concurrent request is NotFound.
func (r *checklistRepository) Delete(ctx context.Context, id uint) error {
	res := r.writer(ctx).Delete(&models.ChecklistItem{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("Peak not found in checklist")
	}
	return nil
}

// ListByUser returns the user's items with their peak, newest first. An empty
// status returns both wishlist and visited items.
func (r *checklistRepository) ListByUser(ctx context.Context, userID uint, status models.ChecklistStatus) ([]models.ChecklistItem, error) {
	q := r.reader(ctx).Preload("Peak").Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	items := []models.ChecklistItem{}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

// VisitedPeaks returns every peak the user has marked visited.
func (r *checklistRepository) VisitedPeaks(ctx context.Context, userID uint) ([]models.Peak, error) {
	peaks := []models.Peak{}
	if err := r.reader(ctx).
		Model(&models.Peak{}).
		Joins("JOIN checklist_items ci ON ci.peak_id = peaks.id").
		Where("ci.user_id = ? AND ci.status = ?", userID, models.ChecklistVisited).
		Order("peaks.name ASC").
		Find(&peaks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return peaks, nil
}

// VisitedByUsers returns the visited rows of several users with their peak.
func (r *checklistRepository) VisitedByUsers(ctx context.Context, userIDs []uint) ([]models.ChecklistItem, error) {
	items := []models.ChecklistItem{}
	if len(userIDs) == 0 {
		return items, nil
	}
	if err := r.reader(ctx).Preload("Peak").
		Where("user_id IN ? AND status = ?", userIDs, models.ChecklistVisited).
		Order("visited_date DESC").
		Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

// DeleteByUser removes every checklist row of the user and returns what was removed.
func (r *checklistRepository) DeleteByUser(ctx context.Context, userID uint) ([]models.ChecklistItem, error) {
	var items []models.ChecklistItem
	db := r.writer(ctx)
	if err := db.Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(items) == 0 {
		return items, nil
	}
	if err := db.Where("user_id = ?", userID).Delete(&models.ChecklistItem{}).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *checklistRepository) CountVisited(ctx context.Context) (int64, error) {
	var n int64
	if err := r.reader(ctx).Model(&models.ChecklistItem{}).
		Where("status = ?", models.ChecklistVisited).
		Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
