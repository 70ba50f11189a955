package seed

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"gorahrib/internal/achievement"
	"gorahrib/internal/cache"
	"gorahrib/internal/middleware"
	"gorahrib/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed data/*.yaml
var defaultData embed.FS

// PeakEntry is one peak in a catalog file. Range may be any spelling or
// sub-region name; unknown ranges import as "Ostale".
type PeakEntry struct {
	Name        string  `yaml:"name"`
	Elevation   int     `yaml:"elevation"`
	Range       string  `yaml:"range"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
	Description string  `yaml:"description"`
	ImageURL    string  `yaml:"image_url"`
}

// AchievementEntry is one achievement in a catalog file.
type AchievementEntry struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Badge       string `yaml:"badge"`
	Criteria    string `yaml:"criteria"`
	Rarity      string `yaml:"rarity"`
}

// Catalog is the parsed content of peaks.yaml and achievements.yaml.
type Catalog struct {
	Peaks        []models.Peak
	Achievements []models.Achievement
}

// CatalogReport summarizes an import.
type CatalogReport struct {
	Peaks        int
	Achievements int
	// Criteria the evaluator cannot interpret. They import anyway and never unlock.
	UnknownCriteria []string
}

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	peaks, err := defaultData.ReadFile("data/peaks.yaml")
	if err != nil {
		return nil, err
	}
	achievements, err := defaultData.ReadFile("data/achievements.yaml")
	if err != nil {
		return nil, err
	}
	return ParseCatalog(peaks, achievements)
}

// ParseCatalog decodes and validates the two catalog documents. Either may be empty.
func ParseCatalog(peaksYAML, achievementsYAML []byte) (*Catalog, error) {
	var peakEntries []PeakEntry
	if err := yaml.Unmarshal(peaksYAML, &peakEntries); err != nil {
		return nil, fmt.Errorf("parse peaks: %w", err)
	}
	var achEntries []AchievementEntry
	if err := yaml.Unmarshal(achievementsYAML, &achEntries); err != nil {
		return nil, fmt.Errorf("parse achievements: %w", err)
	}

	cat := &Catalog{
		Peaks:        make([]models.Peak, 0, len(peakEntries)),
		Achievements: make([]models.Achievement, 0, len(achEntries)),
	}

	seenPeaks := make(map[string]bool, len(peakEntries))
	for i, e := range peakEntries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("peak #%d: name is required", i+1)
		}
		if e.Elevation <= 0 {
			return nil, fmt.Errorf("peak %q: elevation must be positive", name)
		}
		key := strings.ToLower(name)
		if seenPeaks[key] {
			return nil, fmt.Errorf("peak %q: duplicate name", name)
		}
		seenPeaks[key] = true

		cat.Peaks = append(cat.Peaks, models.Peak{
			Name:          name,
			Elevation:     e.Elevation,
			MountainRange: canonicalRange(e.Range),
			Latitude:      e.Latitude,
			Longitude:     e.Longitude,
			Description:   strings.TrimSpace(e.Description),
			ImageURL:      strings.TrimSpace(e.ImageURL),
		})
	}

	seenTitles := make(map[string]bool, len(achEntries))
	for i, e := range achEntries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			return nil, fmt.Errorf("achievement #%d: title is required", i+1)
		}
		if seenTitles[title] {
			return nil, fmt.Errorf("achievement %q: duplicate title", title)
		}
		seenTitles[title] = true
		if strings.TrimSpace(e.Criteria) == "" {
			return nil, fmt.Errorf("achievement %q: criteria is required", title)
		}

		rarity := models.Rarity(strings.TrimSpace(e.Rarity))
		if rarity == "" {
			rarity = models.RarityCommon
		}
		if !rarity.Valid() {
			return nil, fmt.Errorf("achievement %q: unknown rarity %q", title, e.Rarity)
		}

		cat.Achievements = append(cat.Achievements, models.Achievement{
			Title:       title,
			Description: strings.TrimSpace(e.Description),
			Badge:       strings.TrimSpace(e.Badge),
			Criteria:    strings.TrimSpace(e.Criteria),
			Rarity:      rarity,
		})
	}
	return cat, nil
}

func canonicalRange(s string) models.MountainRange {
	if r := models.MountainRange(strings.TrimSpace(s)); r.Valid() {
		return r
	}
	if r, ok := achievement.ResolveRegion(s); ok {
		return r
	}
	return models.RangeOther
}

// ImportCatalog upserts peaks by name and achievements by title, so running it
// twice leaves the catalog unchanged. Climb counts and awarded achievements are
// never touched. With dryRun nothing is written.
func ImportCatalog(ctx context.Context, db *gorm.DB, cat *Catalog, dryRun bool) (CatalogReport, error) {
	report := CatalogReport{Peaks: len(cat.Peaks), Achievements: len(cat.Achievements)}
	for _, a := range cat.Achievements {
		if achievement.Parse(a.Criteria).Kind == achievement.KindUnknown {
			report.UnknownCriteria = append(report.UnknownCriteria, a.Criteria)
		}
	}
	for _, c := range report.UnknownCriteria {
		middleware.Logger.WarnContext(ctx, "achievement criteria not recognised", slog.String("criteria", c))
	}

	if dryRun {
		middleware.Logger.InfoContext(ctx, "[dry-run] catalog import",
			slog.Int("peaks", report.Peaks), slog.Int("achievements", report.Achievements))
		return report, nil
	}

	// Fresh copies: rows carrying an ID from an earlier import would conflict
	// on the primary key instead of the natural key.
	peaks := make([]models.Peak, len(cat.Peaks))
	for i, p := range cat.Peaks {
		p.ID = 0
		peaks[i] = p
	}
	achievements := make([]models.Achievement, len(cat.Achievements))
	for i, a := range cat.Achievements {
		a.ID = 0
		achievements[i] = a
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(peaks) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"elevation", "mountain_range", "latitude", "longitude", "description", "image_url", "updated_at",
				}),
			}).Create(&peaks).Error; err != nil {
				return fmt.Errorf("upsert peaks: %w", err)
			}
		}
		if len(achievements) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "title"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"description", "badge", "criteria", "rarity", "updated_at",
				}),
			}).Create(&achievements).Error; err != nil {
				return fmt.Errorf("upsert achievements: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	cache.InvalidatePattern(ctx, cache.PeakListPattern)

	middleware.Logger.InfoContext(ctx, "catalog imported",
		slog.Int("peaks", report.Peaks), slog.Int("achievements", report.Achievements))
	return report, nil
}
