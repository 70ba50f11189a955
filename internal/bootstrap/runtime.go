// Package bootstrap wires the database and redis for the command-line tools
// and prepares a development database.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorahrib/internal/cache"
	"gorahrib/internal/config"
	"gorahrib/internal/database"
	"gorahrib/internal/middleware"
	"gorahrib/internal/models"
	"gorahrib/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedCatalog imports the embedded peak and achievement catalog.
	SeedCatalog bool
}

// InitRuntime connects to DB and Redis and optionally imports the catalog.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	r := cache.InitRedis(cfg.RedisURL)

	if err := EnsureDevRootAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedCatalog {
		cat, err := seed.DefaultCatalog()
		if err != nil {
			return nil, nil, fmt.Errorf("load built-in catalog: %w", err)
		}
		if _, err := seed.ImportCatalog(ctx, db, cat, false); err != nil {
			return nil, nil, fmt.Errorf("failed to seed built-in catalog: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDevRootAdmin creates or promotes the development administrator named
// by DEV_ROOT_*. Outside development, or with DEV_BOOTSTRAP_ROOT unset, it does nothing.
func EnsureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "gorahrib_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@gorahrib.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	var rootID uint
	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.User
		if err := tx.Where("email = ?", email).Limit(1).Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) == 0 {
			root := models.User{
				Username: username,
				Email:    email,
				Password: string(hashedPassword),
				Role:     models.RoleAdmin,
				Status:   models.UserStatusActive,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
			rootID = root.ID
			return nil
		}

		rootID = existing[0].ID
		updates := map[string]any{
			"role":   models.RoleAdmin,
			"status": models.UserStatusActive,
		}
		if cfg.DevRootForceCredentials {
			updates["username"] = username
			updates["password"] = string(hashedPassword)
		}
		return tx.Model(&models.User{}).Where("id = ?", rootID).Updates(updates).Error
	}); err != nil {
		return err
	}
	cache.InvalidateUser(ctx, rootID)

	middleware.Logger.InfoContext(ctx, "development root admin ensured",
		slog.Uint64("user_id", uint64(rootID)), slog.String("email", email))
	return nil
}
