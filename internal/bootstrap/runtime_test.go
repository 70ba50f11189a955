package bootstrap

import (
	"context"
	"testing"

	"gorahrib/internal/config"
	"gorahrib/internal/models"
	"gorahrib/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func devConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		DevBootstrapRoot: true,
		DevRootUsername:  "skrbnik",
		DevRootEmail:     "Root@Example.com",
		DevRootPassword:  "Geslo12345",
	}
}

func TestEnsureDevRootAdmin_CreatesAdmin(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	require.NoError(t, EnsureDevRootAdmin(context.Background(), devConfig(), db))

	var root models.User
	require.NoError(t, db.Where("email = ?", "root@example.com").First(&root).Error)
	assert.True(t, root.IsAdmin())
	assert.True(t, root.IsActive())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(root.Password), []byte("Geslo12345")))

	// Running again keeps a single admin.
	require.NoError(t, EnsureDevRootAdmin(context.Background(), devConfig(), db))
	assert.Equal(t, int64(1), testutil.CountRows(t, db, &models.User{}, ""))
}

func TestEnsureDevRootAdmin_PromotesExistingUser(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	u := testutil.CreateUser(t, db, "root")
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).
		Update("status", models.UserStatusInactive).Error)

	cfg := devConfig()
	cfg.DevRootEmail = u.Email
	require.NoError(t, EnsureDevRootAdmin(context.Background(), cfg, db))

	got := testutil.Reload(t, db, u.ID)
	assert.True(t, got.IsAdmin())
	assert.True(t, got.IsActive())
	assert.Equal(t, "root", got.Username, "credentials are only replaced when forced")
}

func TestEnsureDevRootAdmin_NoopOutsideDevelopment(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	cfg := devConfig()
	cfg.Env = "production"
	require.NoError(t, EnsureDevRootAdmin(context.Background(), cfg, db))
	assert.Equal(t, int64(0), testutil.CountRows(t, db, &models.User{}, ""))
}

func TestEnsureDevRootAdmin_RequiresPassword(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	cfg := devConfig()
	cfg.DevRootPassword = ""
	assert.Error(t, EnsureDevRootAdmin(context.Background(), cfg, db))
}
