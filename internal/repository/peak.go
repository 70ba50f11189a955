package repository

import (
	"context"
	"strings"

	"gorahrib/internal/cache"
	"gorahrib/internal/models"

	"gorm.io/gorm"
)

// PeakRepository reads the peak catalog and maintains climb counts.
type PeakRepository interface {
	WithTx(tx *gorm.DB) PeakRepository
	GetByID(ctx context.Context, id uint) (*models.Peak, error)
	List(ctx context.Context, mountainRange models.MountainRange, limit, offset int) ([]models.Peak, error)
	Search(ctx context.Context, name string, limit int) ([]models.Peak, error)
	CountByRange(ctx context.Context) (map[models.MountainRange]int, error)
	AdjustClimbCount(ctx context.Context, id uint, delta int) error
	Count(ctx context.Context) (int64, error)
}

type peakRepository struct {
	scope
}

// NewPeakRepository returns a new PeakRepository implementation.
func NewPeakRepository(db *gorm.DB) PeakRepository {
	return &peakRepository{scope{db: db}}
}

func (r *peakRepository) WithTx(tx *gorm.DB) PeakRepository {
	return &peakRepository{r.bind(tx)}
}

func (r *peakRepository) GetByID(ctx context.Context, id uint) (*models.Peak, error) {
	var peak models.Peak
	fetch := func() error {
		if err := r.reader(ctx).First(&peak, id).Error; err != nil {
			return notFoundOr(err, models.NewNotFoundError("Peak", id))
		}
		return nil
	}
	if r.inTx {
		if err := fetch(); err != nil {
			return nil, err
		}
		return &peak, nil
	}
	if err := cache.Aside(ctx, cache.PeakKey(id), &peak, cache.PeakTTL, fetch); err != nil {
		return nil, err
	}
	return &peak, nil
}

// List returns one page of the catalog ordered by name. An empty range lists all.
func (r *peakRepository) List(ctx context.Context, mountainRange models.MountainRange, limit, offset int) ([]models.Peak, error) {
	limit, offset = clampPage(limit, offset, 100, 500)
	peaks := []models.Peak{}
	fetch := func() error {
		q := r.reader(ctx)
		if mountainRange != "" {
			q = q.Where("mountain_range = ?", mountainRange)
		}
		if err := q.Order("name ASC").Limit(limit).Offset(offset).Find(&peaks).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	}
	if r.inTx {
		return peaks, fetch()
	}
	key := cache.PeakListKey(string(mountainRange), limit, offset)
	if err := cache.Aside(ctx, key, &peaks, cache.PeakTTL, fetch); err != nil {
		return nil, err
	}
	return peaks, nil
}

func (r *peakRepository) Search(ctx context.Context, name string, limit int) ([]models.Peak, error) {
	limit, _ = clampPage(limit, 0, 20, 20)
	pattern := "%" + strings.ToLower(strings.TrimSpace(name)) + "%"

	var peaks []models.Peak
	if err := r.reader(ctx).
		Where("LOWER(name) LIKE ?", pattern).
		Order("elevation DESC").
		Limit(limit).
		Find(&peaks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return peaks, nil
}

// CountByRange returns the number of catalog peaks in each range.
func (r *peakRepository) CountByRange(ctx context.Context) (map[models.MountainRange]int, error) {
	var rows []struct {
		MountainRange models.MountainRange
		Total         int
	}
	if err := r.reader(ctx).Model(&models.Peak{}).
		Select("mountain_range, COUNT(*) AS total").
		Group("mountain_range").
		Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	out := make(map[models.MountainRange]int, len(rows))
	for _, row := range rows {
		out[row.MountainRange] = row.Total
	}
	return out, nil
}

func (r *peakRepository) AdjustClimbCount(ctx context.Context, id uint, delta int) error {
	if delta == 0 {
		return nil
	}
	res := r.writer(ctx).Model(&models.Peak{}).Where("id = ?", id).
		UpdateColumn("climb_count", counterUpdate(r.db, "climb_count", delta))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Peak", id)
	}
	return nil
}

func (r *peakRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.reader(ctx).Model(&models.Peak{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
