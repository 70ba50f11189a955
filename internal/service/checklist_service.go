package service

import (
	"context"
	"time"

	"gorahrib/internal/cache"
	"gorahrib/internal/database"
	"gorahrib/internal/models"
	"gorahrib/internal/repository"
	"gorahrib/internal/storage"

	"gorm.io/gorm"
)

// VisitResult is returned after a peak is marked visited.
type VisitResult struct {
	Item            *models.ChecklistItem       `json:"item"`
	NewAchievements []models.AchievementSummary `json:"newAchievements"`
}

// RemoveResult is returned after a peak leaves the checklist.
type RemoveResult struct {
	RevokedAchievements []models.AchievementSummary `json:"revokedAchievements"`
}

// ChecklistService manages a user's wishlist and visited peaks. Every change
// writes the checklist row, the user counters and the peak climb count in one
// transaction, and re-evaluates achievements in that same transaction.
type ChecklistService struct {
	uow          *database.UnitOfWork
	checklist    repository.ChecklistRepository
	peaks        repository.PeakRepository
	users        repository.UserRepository
	achievements *AchievementService
	store        storage.ObjectStore
	images       *ImageProcessor
	now          func() time.Time
}

// NewChecklistService returns a new ChecklistService.
func NewChecklistService(
	uow *database.UnitOfWork,
	checklist repository.ChecklistRepository,
	peaks repository.PeakRepository,
	users repository.UserRepository,
	achievements *AchievementService,
	store storage.ObjectStore,
	images *ImageProcessor,
) *ChecklistService {
	return &ChecklistService{
		uow:          uow,
		checklist:    checklist,
		peaks:        peaks,
		users:        users,
		achievements: achievements,
		store:        store,
		images:       images,
		now:          time.Now,
	}
}

// List returns the user's checklist, optionally filtered by status.
func (s *ChecklistService) List(ctx context.Context, userID uint, status models.ChecklistStatus) ([]models.ChecklistItem, error) {
	if status != "" && status != models.ChecklistWishlist && status != models.ChecklistVisited {
		return nil, models.NewValidationError("Invalid checklist status")
	}
	return s.checklist.ListByUser(ctx, userID, status)
}

// Add puts a peak on the user's wishlist.
func (s *ChecklistService) Add(ctx context.Context, userID, peakID uint) (*models.ChecklistItem, error) {
	var item *models.ChecklistItem
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		peak, err := s.peaks.WithTx(tx).GetByID(ctx, peakID)
		if err != nil {
			return err
		}
		existing, err := s.checklist.WithTx(tx).Get(ctx, userID, peakID)
		if err != nil {
			return err
		}
		if existing != nil {
			return models.NewConflictError("Peak already in checklist")
		}

		item = &models.ChecklistItem{
			UserID:   userID,
			PeakID:   peakID,
			Status:   models.ChecklistWishlist,
			Pictures: models.StringList{},
		}
		if err := s.checklist.WithTx(tx).Create(ctx, item); err != nil {
			return err
		}
		item.Peak = *peak
		return s.users.WithTx(tx).AdjustCounters(ctx, userID, map[string]int{
			repository.ColPeaksCount: 1,
		})
	})
	err = settle(ctx, "checklist_add", err, func() {
		cache.InvalidateUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Visit marks a wishlist peak as climbed and awards any achievement the
// user now qualifies for.
func (s *ChecklistService) Visit(ctx context.Context, userID, peakID uint) (*VisitResult, error) {
	var (
		item    *models.ChecklistItem
		awarded []models.Achievement
	)
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		item, err = s.checklist.WithTx(tx).Get(ctx, userID, peakID)
		if err != nil {
			return err
		}
		if item == nil {
			return models.NewNotFoundMessage("Peak not found in checklist")
		}
		if item.IsVisited() {
			return models.NewConflictError("Peak already marked as visited")
		}

		visitedAt := s.now().UTC()
		if err := s.checklist.WithTx(tx).MarkVisited(ctx, item.ID, visitedAt); err != nil {
			return err
		}
		item.Status = models.ChecklistVisited
		item.VisitedDate = &visitedAt

		if err := s.users.WithTx(tx).AdjustCounters(ctx, userID, map[string]int{
			repository.ColFinishedPeaksCount: 1,
		}); err != nil {
			return err
		}
		if err := s.peaks.WithTx(tx).AdjustClimbCount(ctx, peakID, 1); err != nil {
			return err
		}
		peak, err := s.peaks.WithTx(tx).GetByID(ctx, peakID)
		if err != nil {
			return err
		}
		item.Peak = *peak

		awarded, err = s.achievements.AwardNewAchievements(ctx, tx, userID)
		return err
	})
	err = settle(ctx, "checklist_visit", err, func() {
		cache.InvalidateUser(ctx, userID)
		cache.InvalidatePeak(ctx, peakID)
		cache.InvalidateLeaderboard(ctx)
		s.achievements.Published(ctx, userID, awarded, nil)
	})
	if err != nil {
		return nil, err
	}

	return &VisitResult{Item: item, NewAchievements: models.Summaries(awarded)}, nil
}

// AddPictures attaches up to MaxChecklistPictures pictures to a visited peak.
// Files are uploaded before the transaction and deleted again if it fails.
func (s *ChecklistService) AddPictures(ctx context.Context, userID, peakID uint, files []UploadFile) (*models.ChecklistItem, error) {
	if len(files) == 0 {
		return nil, models.NewValidationError("No pictures uploaded")
	}
	if len(files) > models.MaxChecklistPictures {
		return nil, models.NewValidationError("You can upload at most 3 pictures per peak")
	}

	checklist := s.checklist
	if tx, ok := database.TxFromContext(ctx); ok {
		checklist = checklist.WithTx(tx)
	}
	current, err := checklist.Get(ctx, userID, peakID)
	if err != nil {
		return nil, err
	}
	if err := checkPictureSlot(current, len(files)); err != nil {
		return nil, err
	}

	urls, err := uploadImages(ctx, s.store, s.images, files, storage.FolderPeakPictures)
	if err != nil {
		return nil, err
	}

	var item *models.ChecklistItem
	err = s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		item, err = s.checklist.WithTx(tx).Get(ctx, userID, peakID)
		if err != nil {
			return err
		}
		if err := checkPictureSlot(item, len(urls)); err != nil {
			return err
		}
		item.Pictures = append(append(models.StringList{}, item.Pictures...), urls...)
		return s.checklist.WithTx(tx).SetPictures(ctx, item.ID, item.Pictures)
	})
	if err != nil {
		discardFiles(ctx, s.store, urls)
		return nil, err
	}
	database.AfterRollback(ctx, func() { discardFiles(ctx, s.store, urls) })
	return item, nil
}

func checkPictureSlot(item *models.ChecklistItem, adding int) error {
	if item == nil {
		return models.NewNotFoundMessage("Peak not found in checklist")
	}
	if !item.IsVisited() {
		return models.NewValidationError("Pictures can only be added to visited peaks")
	}
	if len(item.Pictures)+adding > models.MaxChecklistPictures {
		return models.NewValidationError("You can upload at most 3 pictures per peak")
	}
	return nil
}

// Remove takes a peak off the checklist. Removing a visited peak undoes its
// counters and revokes achievements that no longer hold.
func (s *ChecklistService) Remove(ctx context.Context, userID, peakID uint) (*RemoveResult, error) {
	var (
		item    *models.ChecklistItem
		revoked []models.Achievement
	)
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		item, err = s.checklist.WithTx(tx).Get(ctx, userID, peakID)
		if err != nil {
			return err
		}
		if item == nil {
			return models.NewNotFoundMessage("Peak not found in checklist")
		}
		if err := s.checklist.WithTx(tx).Delete(ctx, item.ID); err != nil {
			return err
		}

		deltas := map[string]int{repository.ColPeaksCount: -1}
		if item.IsVisited() {
			deltas[repository.ColFinishedPeaksCount] = -1
		}
		if err := s.users.WithTx(tx).AdjustCounters(ctx, userID, deltas); err != nil {
			return err
		}
		if !item.IsVisited() {
			return nil
		}
		if err := s.peaks.WithTx(tx).AdjustClimbCount(ctx, peakID, -1); err != nil {
			return err
		}
		revoked, err = s.achievements.RevokeStaleAchievements(ctx, tx, userID)
		return err
	})
	err = settle(ctx, "checklist_remove", err, func() {
		discardFiles(ctx, s.store, item.Pictures)
		cache.InvalidateUser(ctx, userID)
		if item.IsVisited() {
			cache.InvalidatePeak(ctx, peakID)
			cache.InvalidateLeaderboard(ctx)
		}
		s.achievements.Published(ctx, userID, nil, revoked)
	})
	if err != nil {
		return nil, err
	}

	return &RemoveResult{RevokedAchievements: models.Summaries(revoked)}, nil
}
