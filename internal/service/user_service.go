package service

import (
	"context"
	"strings"

	"gorahrib/internal/cache"
	"gorahrib/internal/database"
	"gorahrib/internal/models"
	"gorahrib/internal/repository"
	"gorahrib/internal/storage"
	"gorahrib/internal/validation"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	uow       *database.UnitOfWork
	userRepo  repository.UserRepository
	checklist repository.ChecklistRepository
	store     storage.ObjectStore
	images    *ImageProcessor
}

// ProfileCrop positions a profile picture inside its round frame.
type ProfileCrop struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

func NewUserService(
	uow *database.UnitOfWork,
	userRepo repository.UserRepository,
	checklist repository.ChecklistRepository,
	store storage.ObjectStore,
	images *ImageProcessor,
) *UserService {
	return &UserService{
		uow:       uow,
		userRepo:  userRepo,
		checklist: checklist,
		store:     store,
		images:    images,
	}
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// SearchUsers matches usernames case-insensitively, excluding the caller.
func (s *UserService) SearchUsers(ctx context.Context, query string, userID uint) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.userRepo.Search(ctx, query, userID, 20)
}

// UpdateUsername renames the user. Usernames are unique.
func (s *UserService) UpdateUsername(ctx context.Context, userID uint, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != userID {
		return nil, models.NewConflictError("Username already taken")
	}

	if err := s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{"username": username}); err != nil {
		if models.IsCode(err, models.CodeConflict) {
			return nil, models.NewConflictError("Username already taken")
		}
		return nil, err
	}
	cache.InvalidateLeaderboard(ctx)
	return s.userRepo.GetByID(ctx, userID)
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if current == "" || next == "" {
		return models.NewValidationError("Current and new password are required")
	}
	if err := validation.ValidatePassword(next); err != nil {
		return models.NewValidationError(err.Error())
	}

	return s.uow.Do(ctx, func(tx *gorm.DB) error {
		// The cached profile has no password hash, so read through the tx.
		user, err := s.userRepo.WithTx(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)) != nil {
			return models.NewValidationError("Invalid current password")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
		if err != nil {
			return models.NewInternalError(err)
		}
		return s.userRepo.WithTx(tx).UpdateFields(ctx, userID, map[string]interface{}{"password": string(hash)})
	})
}

// VisitedPeaks returns the peaks the user has climbed.
func (s *UserService) VisitedPeaks(ctx context.Context, userID uint) ([]models.Peak, error) {
	return s.checklist.VisitedPeaks(ctx, userID)
}

// ChecklistPeaks returns every peak on the user's checklist.
func (s *UserService) ChecklistPeaks(ctx context.Context, userID uint) ([]models.Peak, error) {
	items, err := s.checklist.ListByUser(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	peaks := make([]models.Peak, 0, len(items))
	for _, item := range items {
		peaks = append(peaks, item.Peak)
	}
	return peaks, nil
}

// UpdateProfilePicture stores a new profile picture and removes the old one.
func (s *UserService) UpdateProfilePicture(ctx context.Context, userID uint, file UploadFile, crop ProfileCrop) (*models.User, error) {
	if crop.Zoom <= 0 {
		crop.Zoom = 1
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	urls, err := uploadImages(ctx, s.store, s.images, []UploadFile{file}, storage.FolderProfilePictures)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{
		"profile_picture":   urls[0],
		"profile_crop_x":    crop.X,
		"profile_crop_y":    crop.Y,
		"profile_crop_zoom": crop.Zoom,
	}); err != nil {
		discardFiles(ctx, s.store, urls)
		return nil, err
	}

	if user.ProfilePicture != "" {
		discardFiles(ctx, s.store, []string{user.ProfilePicture})
	}
	cache.InvalidateLeaderboard(ctx)
	return s.userRepo.GetByID(ctx, userID)
}

// DeleteProfilePicture clears the profile picture.
func (s *UserService) DeleteProfilePicture(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ProfilePicture == "" {
		return nil, models.NewNotFoundMessage("No profile picture to delete")
	}
	if err := s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{
		"profile_picture":   "",
		"profile_crop_x":    0,
		"profile_crop_y":    0,
		"profile_crop_zoom": 1,
	}); err != nil {
		return nil, err
	}

	discardFiles(ctx, s.store, []string{user.ProfilePicture})
	cache.InvalidateLeaderboard(ctx)
	return s.userRepo.GetByID(ctx, userID)
}
