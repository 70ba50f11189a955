// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"fmt"
	"strings"

	"gorahrib/internal/cache"
	"gorahrib/internal/models"
	"gorahrib/internal/observability"

	"gorm.io/gorm"
)

// User counter columns that AdjustCounters accepts.
const (
	ColPeaksCount         = "peaks_count"
	ColFinishedPeaksCount = "finished_peaks_count"
	ColFriendsCount       = "friends_count"
	ColAchievementsCount  = "achievements_count"
)

var userCounterColumns = map[string]bool{
	ColPeaksCount:         true,
	ColFinishedPeaksCount: true,
	ColFriendsCount:       true,
	ColAchievementsCount:  true,
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error)
	AdjustCounters(ctx context.Context, id uint, deltas map[string]int) error
	Ranked(ctx context.Context, ids []uint, limit int) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}

type userRepository struct {
	scope
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{scope{db: db}}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{r.bind(tx)}
}

// GetByID is served from the cache outside transactions. The cached copy has
// no password hash.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	fetch := func() error {
		if err := r.reader(ctx).First(&user, id).Error; err != nil {
			return notFoundOr(err, models.NewNotFoundError("User", id))
		}
		return nil
	}

	if r.inTx {
		if err := fetch(); err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, fetch); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", strings.TrimSpace(username))
}

// findOne returns (nil, nil) when nothing matches.
func (r *userRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var users []models.User
	if err := r.reader(ctx).Where(query, arg).Limit(1).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.writer(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.writer(ctx).Save(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

// UpdateFields writes the given columns only.
func (r *userRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := r.writer(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError("User already exists")
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	if err := r.writer(ctx).Delete(&models.User{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	limit, offset = clampPage(limit, offset, 50, 200)
	var users []models.User
	if err := r.reader(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// Search matches usernames case-insensitively, excluding excludeID.
func (r *userRepository) Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error) {
	limit, _ = clampPage(limit, 0, 20, 20)
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	var users []models.User
	if err := r.reader(ctx).
		Where("LOWER(username) LIKE ? AND id <> ?", pattern, excludeID).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// AdjustCounters applies signed deltas to the user's counter columns in one
// UPDATE. Negative deltas are clamped at zero.
func (r *userRepository) AdjustCounters(ctx context.Context, id uint, deltas map[string]int) error {
	updates := make(map[string]interface{}, len(deltas))
	for col, delta := range deltas {
		if !userCounterColumns[col] {
			return fmt.Errorf("adjust counters: unknown column %q", col)
		}
		if delta == 0 {
			continue
		}
		updates[col] = counterUpdate(r.db, col, delta)
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.writer(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumns(updates)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

// Ranked returns users with at least one finished peak, best first. A nil ids
// slice ranks everyone; an empty one ranks no one.
func (r *userRepository) Ranked(ctx context.Context, ids []uint, limit int) ([]models.User, error) {
	if ids != nil && len(ids) == 0 {
		return []models.User{}, nil
	}
	limit, _ = clampPage(limit, 0, 100, 500)
	defer observability.TrackQuery("ranked", "users")()

	q := r.reader(ctx).Where("finished_peaks_count > 0")
	if ids != nil {
		q = q.Where("id IN ?", ids)
	}
	var users []models.User
	if err := q.Order("finished_peaks_count DESC").Order("achievements_count DESC").Order("id ASC").
		Limit(limit).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.reader(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
