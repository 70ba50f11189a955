package service

import (
	"context"
	"strings"

	"gorahrib/internal/models"
	"gorahrib/internal/repository"
)

// PeakService serves the read-only peak catalog.
type PeakService struct {
	peaks repository.PeakRepository
}

func NewPeakService(peaks repository.PeakRepository) *PeakService {
	return &PeakService{peaks: peaks}
}

// ListPeaks returns one page of the catalog, optionally limited to a range.
func (s *PeakService) ListPeaks(ctx context.Context, mountainRange string, limit, offset int) ([]models.Peak, error) {
	r := models.MountainRange(strings.TrimSpace(mountainRange))
	if r != "" && !r.Valid() {
		return nil, models.NewValidationError("Invalid mountain range")
	}
	return s.peaks.List(ctx, r, limit, offset)
}

func (s *PeakService) GetPeak(ctx context.Context, id uint) (*models.Peak, error) {
	return s.peaks.GetByID(ctx, id)
}

// SearchPeaks matches peak names case-insensitively, highest first.
func (s *PeakService) SearchPeaks(ctx context.Context, name string) ([]models.Peak, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.peaks.Search(ctx, name, 20)
}
