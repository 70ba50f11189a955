// Command admin promotes, demotes and lists GoraHrib administrators.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gorahrib/internal/cache"
	"gorahrib/internal/config"
	"gorahrib/internal/database"
	"gorahrib/internal/models"
	"gorahrib/internal/repository"

	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin promote <user_id>   - Promote user to admin")
		fmt.Println("  go run ./cmd/admin demote <user_id>    - Demote admin to user")
		fmt.Println("  go run ./cmd/admin list-admins         - List all admins")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	cache.InitRedis(cfg.RedisURL)

	ctx := context.Background()
	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <user_id>\n", command)
			os.Exit(1)
		}
		role := models.RoleAdmin
		if command == "demote" {
			role = models.RoleUser
		}
		if err := setRole(ctx, db, os.Args[2], role); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "list-admins":
		if err := listAdmins(ctx, db); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func setRole(ctx context.Context, db *gorm.DB, rawID string, role models.UserRole) error {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", rawID)
	}

	users := repository.NewUserRepository(db)
	user, err := users.GetByID(ctx, uint(id))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user with ID %d not found", id)
		}
		return fmt.Errorf("database error: %w", err)
	}

	if user.Role == role {
		fmt.Printf("User %s (ID: %d) already has role %s\n", user.Username, user.ID, role)
		return nil
	}

	if err := users.UpdateFields(ctx, user.ID, map[string]interface{}{"role": role}); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	fmt.Printf("Updated %s (ID: %d) to role %s\n", user.Username, user.ID, role)
	return nil
}

func listAdmins(ctx context.Context, db *gorm.DB) error {
	var admins []models.User
	if err := db.WithContext(ctx).Where("role = ?", models.RoleAdmin).Order("id").Find(&admins).Error; err != nil {
		return fmt.Errorf("failed to fetch admins: %w", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found")
		return nil
	}

	fmt.Println("Current admins:")
	for _, admin := range admins {
		fmt.Printf("ID: %d | Username: %s | Email: %s | Status: %s\n", admin.ID, admin.Username, admin.Email, admin.Status)
	}
	return nil
}
