// Command seed imports the peak and achievement catalog and generates demo
// hikers for a development database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gorahrib/internal/config"
	"gorahrib/internal/database"
	"gorahrib/internal/middleware"
	"gorahrib/internal/repository"
	"gorahrib/internal/seed"
	"gorahrib/internal/service"

	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	numUsers := flag.Int("users", 20, "Number of demo hikers to create (0 imports the catalog only)")
	maxFriends := flag.Int("max-friends", 3, "Maximum friendships started per hiker")
	maxPeaks := flag.Int("max-peaks", 8, "Maximum checklist peaks per hiker")
	visitRatio := flag.Float64("visit-ratio", 0.6, "Share of checklist peaks already climbed")
	reports := flag.Int("reports", 1, "Hike reports per hiker")
	dryRun := flag.Bool("dry-run", false, "Log what would be written without touching the database")
	skipBcrypt := flag.Bool("skip-bcrypt", false, "Store the demo password unhashed (faster, development only)")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 picks one)")
	peaksFile := flag.String("peaks", "", "Peak catalog YAML replacing the built-in one")
	achievementsFile := flag.String("achievements", "", "Achievement catalog YAML replacing the built-in one")
	flag.Parse()

	cat, err := loadCatalog(*peaksFile, *achievementsFile)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.IsProduction() && !*dryRun {
		return fmt.Errorf("refusing to seed a production database")
	}

	var db *gorm.DB
	if !*dryRun {
		db, err = database.Connect(cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
	}

	awards := service.NewAchievementService(
		repository.NewAchievementRepository(db),
		repository.NewChecklistRepository(db),
		repository.NewPeakRepository(db),
		repository.NewUserRepository(db),
		repository.NewPostRepository(db),
		repository.NewCommentRepository(db),
		repository.NewLikeRepository(db),
		nil,
	)

	summary, err := seed.Run(context.Background(), db, cat, seed.Options{
		NumUsers:        *numUsers,
		MaxFriends:      *maxFriends,
		MaxPeaksPerUser: *maxPeaks,
		VisitRatio:      *visitRatio,
		ReportsPerUser:  *reports,
		DryRun:          *dryRun,
		SkipBcrypt:      *skipBcrypt,
		RandomSeed:      *randomSeed,
	}, awards)
	if err != nil {
		return err
	}

	middleware.Logger.Info("seed summary",
		slog.Int("peaks", summary.Catalog.Peaks),
		slog.Int("achievements", summary.Catalog.Achievements),
		slog.Int("unknown_criteria", len(summary.Catalog.UnknownCriteria)),
		slog.Int("users", summary.Users),
		slog.Int("friendships", summary.Friendships),
		slog.Int("visited", summary.Visited),
		slog.Int("posts", summary.Posts))
	if summary.Users > 0 && !*dryRun {
		middleware.Logger.Info("demo hikers share one password", slog.String("password", seed.DemoPassword))
	}
	return nil
}

// loadCatalog returns the built-in catalog with either half optionally
// replaced by a YAML file.
func loadCatalog(peaksFile, achievementsFile string) (*seed.Catalog, error) {
	cat, err := seed.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if peaksFile == "" && achievementsFile == "" {
		return cat, nil
	}

	peaksYAML, err := readOptional(peaksFile)
	if err != nil {
		return nil, err
	}
	achievementsYAML, err := readOptional(achievementsFile)
	if err != nil {
		return nil, err
	}
	parsed, err := seed.ParseCatalog(peaksYAML, achievementsYAML)
	if err != nil {
		return nil, err
	}
	if peaksFile != "" {
		cat.Peaks = parsed.Peaks
	}
	if achievementsFile != "" {
		cat.Achievements = parsed.Achievements
	}
	return cat, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return data, nil
}
