package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorahrib/internal/middleware"
	"gorahrib/internal/models"
	"gorahrib/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every generated hiker.
const DemoPassword = "Gorahrib123"

// Awarder grants achievements inside a transaction.
type Awarder interface {
	AwardNewAchievements(ctx context.Context, tx *gorm.DB, userID uint) ([]models.Achievement, error)
}

// Factory builds demo hikers and their hiking history. Every row goes through
// the repositories so the denormalized counters stay consistent.
type Factory struct {
	db     *gorm.DB
	opts   Options
	faker  *gofakeit.Faker
	awards Awarder

	users     repository.UserRepository
	peaks     repository.PeakRepository
	checklist repository.ChecklistRepository
	friends   repository.FriendRepository
	posts     repository.PostRepository

	// synthetic ID counter when running in DryRun mode
	nextID uint
	// accepted or pending pairs, keyed low:high
	pairs map[string]bool
}

// NewFactory creates a Factory bound to db. awards may be nil, in which case
// no achievements are granted.
func NewFactory(db *gorm.DB, opts Options, awards Awarder) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		db:        db,
		opts:      opts.withDefaults(),
		faker:     gofakeit.New(seed),
		awards:    awards,
		users:     repository.NewUserRepository(db),
		peaks:     repository.NewPeakRepository(db),
		checklist: repository.NewChecklistRepository(db),
		friends:   repository.NewFriendRepository(db),
		posts:     repository.NewPostRepository(db),
		nextID:    1000,
		pairs:     make(map[string]bool),
	}
}

// BuildHiker returns an unsaved user with a unique-looking username.
func (f *Factory) BuildHiker(overrides ...func(*models.User)) *models.User {
	first := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, strings.ToLower(f.faker.FirstName()))
	if first == "" {
		first = "pohodnik"
	}
	if len(first) > 12 {
		first = first[:12]
	}
	username := fmt.Sprintf("%s_%d", first, f.faker.Number(100, 999999))

	user := &models.User{
		Username: username,
		Email:    username + "@" + f.faker.DomainName(),
		Role:     models.RoleUser,
		Status:   models.UserStatusActive,
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateHiker persists a generated user.
func (f *Factory) CreateHiker(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildHiker(overrides...)

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = DemoPassword
	} else {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.Password = string(hashed)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		middleware.Logger.InfoContext(ctx, "[dry-run] create hiker", slog.String("username", user.Username))
		return user, nil
	}
	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// FillChecklist puts a random selection of catalog peaks on the user's
// checklist and marks some of them visited, then grants whatever
// achievements the new history earns. It returns the visited peaks.
func (f *Factory) FillChecklist(ctx context.Context, user *models.User, catalog []models.Peak) ([]models.Peak, error) {
	if len(catalog) == 0 {
		return nil, nil
	}
	n := f.faker.Number(1, min(f.opts.MaxPeaksPerUser, len(catalog)))
	picked := f.pickPeaks(catalog, n)

	items := make([]models.ChecklistItem, 0, len(picked))
	var visited []models.Peak
	now := time.Now().UTC()
	for _, p := range picked {
		item := models.ChecklistItem{UserID: user.ID, PeakID: p.ID, Status: models.ChecklistWishlist}
		if f.faker.Float64Range(0, 1) < f.opts.VisitRatio {
			when := f.faker.DateRange(now.AddDate(-2, 0, 0), now).UTC()
			item.Status = models.ChecklistVisited
			item.VisitedDate = &when
			visited = append(visited, p)
		}
		items = append(items, item)
	}

	if f.opts.DryRun {
		middleware.Logger.InfoContext(ctx, "[dry-run] fill checklist",
			slog.String("username", user.Username),
			slog.Int("peaks", len(items)), slog.Int("visited", len(visited)))
		return visited, nil
	}

	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range items {
			if err := f.checklist.WithTx(tx).Create(ctx, &items[i]); err != nil {
				return err
			}
		}
		for _, p := range visited {
			if err := f.peaks.WithTx(tx).AdjustClimbCount(ctx, p.ID, 1); err != nil {
				return err
			}
		}
		if err := f.users.WithTx(tx).AdjustCounters(ctx, user.ID, map[string]int{
			repository.ColPeaksCount:         len(items),
			repository.ColFinishedPeaksCount: len(visited),
		}); err != nil {
			return err
		}
		if f.awards == nil {
			return nil
		}
		_, err := f.awards.AwardNewAchievements(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return visited, nil
}

// Befriend stores an accepted friendship between a and b. A pair that is
// already connected is skipped and reported as false.
func (f *Factory) Befriend(ctx context.Context, a, b *models.User) (bool, error) {
	if a.ID == b.ID {
		return false, nil
	}
	key := pairKey(a.ID, b.ID)
	if f.pairs[key] {
		return false, nil
	}
	f.pairs[key] = true

	if f.opts.DryRun {
		middleware.Logger.InfoContext(ctx, "[dry-run] befriend",
			slog.String("a", a.Username), slog.String("b", b.Username))
		return true, nil
	}

	accepted := time.Now().UTC()
	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := f.friends.WithTx(tx).Create(ctx, &models.Friendship{
			RequesterID: a.ID,
			AddresseeID: b.ID,
			Status:      models.FriendshipStatusAccepted,
			AcceptedAt:  &accepted,
		}); err != nil {
			return err
		}
		for _, id := range []uint{a.ID, b.ID} {
			if err := f.users.WithTx(tx).AdjustCounters(ctx, id, map[string]int{
				repository.ColFriendsCount: 1,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return err == nil, err
}

// CreateHikeReport writes a forum post about a visited peak.
func (f *Factory) CreateHikeReport(ctx context.Context, user *models.User, peak models.Peak) (*models.ForumPost, error) {
	peakID := peak.ID
	post := &models.ForumPost{
		UserID:   user.ID,
		PeakID:   &peakID,
		Title:    fmt.Sprintf("%s: %s", peak.Name, strings.TrimSuffix(f.faker.Sentence(4), ".")),
		Content:  f.faker.Paragraph(1, 3, 12, "\n"),
		Category: models.CategoryHike,
	}

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		return post, nil
	}
	if err := f.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (f *Factory) pickPeaks(catalog []models.Peak, n int) []models.Peak {
	shuffled := make([]models.Peak, len(catalog))
	copy(shuffled, catalog)
	f.faker.ShuffleAnySlice(shuffled)
	return shuffled[:n]
}

func pairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
