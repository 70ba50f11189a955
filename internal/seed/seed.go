// Package seed imports the peak and achievement catalog and generates demo
// hikers for development databases.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"gorahrib/internal/middleware"
	"gorahrib/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	// NumUsers demo hikers to generate. Zero imports the catalog only.
	NumUsers        int
	MaxFriends      int
	MaxPeaksPerUser int
	// VisitRatio is the chance a checklist peak is already climbed.
	VisitRatio float64
	// ReportsPerUser caps hike reports per hiker.
	ReportsPerUser int
	DryRun         bool
	SkipBcrypt     bool
	RandomSeed     int64
}

func (o Options) withDefaults() Options {
	if o.MaxFriends <= 0 {
		o.MaxFriends = 3
	}
	if o.MaxPeaksPerUser <= 0 {
		o.MaxPeaksPerUser = 8
	}
	if o.VisitRatio <= 0 || o.VisitRatio > 1 {
		o.VisitRatio = 0.6
	}
	if o.ReportsPerUser < 0 {
		o.ReportsPerUser = 0
	}
	return o
}

// Summary reports what a run created.
type Summary struct {
	Catalog     CatalogReport
	Users       int
	Friendships int
	Visited     int
	Posts       int
}

// Run imports cat and then generates demo data. awards grants achievements
// for the generated history and may be nil.
func Run(ctx context.Context, db *gorm.DB, cat *Catalog, opts Options, awards Awarder) (*Summary, error) {
	opts = opts.withDefaults()
	middleware.Logger.InfoContext(ctx, "starting database seeding",
		slog.Int("users", opts.NumUsers), slog.Bool("dry_run", opts.DryRun))

	report, err := ImportCatalog(ctx, db, cat, opts.DryRun)
	if err != nil {
		return nil, fmt.Errorf("import catalog: %w", err)
	}
	summary := &Summary{Catalog: report}
	if opts.NumUsers == 0 {
		return summary, nil
	}

	peaks := cat.Peaks
	if !opts.DryRun {
		if err := db.WithContext(ctx).Order("id").Find(&peaks).Error; err != nil {
			return nil, fmt.Errorf("load peaks: %w", err)
		}
	}

	f := NewFactory(db, opts, awards)
	hikers := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateHiker(ctx)
		if models.IsCode(err, models.CodeConflict) {
			// generated username collided; one retry is enough in practice
			u, err = f.CreateHiker(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("create hiker: %w", err)
		}
		hikers = append(hikers, u)

		visited, err := f.FillChecklist(ctx, u, peaks)
		if err != nil {
			return nil, fmt.Errorf("fill checklist for %s: %w", u.Username, err)
		}
		summary.Visited += len(visited)

		for j := 0; j < min(opts.ReportsPerUser, len(visited)); j++ {
			if _, err := f.CreateHikeReport(ctx, u, visited[j]); err != nil {
				return nil, fmt.Errorf("create hike report: %w", err)
			}
			summary.Posts++
		}
	}
	summary.Users = len(hikers)

	for i, u := range hikers {
		want := f.faker.Number(0, opts.MaxFriends)
		for k := 1; k <= want && len(hikers) > 1; k++ {
			other := hikers[(i+k*f.faker.Number(1, len(hikers)-1))%len(hikers)]
			ok, err := f.Befriend(ctx, u, other)
			if err != nil {
				return nil, fmt.Errorf("befriend: %w", err)
			}
			if ok {
				summary.Friendships++
			}
		}
	}

	middleware.Logger.InfoContext(ctx, "database seeding completed",
		slog.Int("users", summary.Users),
		slog.Int("friendships", summary.Friendships),
		slog.Int("visited", summary.Visited),
		slog.Int("posts", summary.Posts))
	return summary, nil
}
