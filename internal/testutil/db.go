// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorahrib/internal/database"
	"gorahrib/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB returns a migrated in-memory database. It holds a single
// connection: an in-memory sqlite database lives and dies with its connection,
// and work inside UnitOfWork.Do must go through the tx handle.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=private", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateUser inserts a user named name with a throwaway password hash.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{
		Username: name,
		Email:    name + "@example.com",
		Password: "$2a$10$notarealhashnotarealhashnotarealhashnotarealhash",
		Role:     models.RoleUser,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePeak inserts a catalog peak.
func CreatePeak(t testing.TB, db *gorm.DB, name string, elevation int, r models.MountainRange) *models.Peak {
	t.Helper()
	p := &models.Peak{Name: name, Elevation: elevation, MountainRange: r}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreateAchievement inserts a catalog achievement with the given criteria.
func CreateAchievement(t testing.TB, db *gorm.DB, title, criteria string) *models.Achievement {
	t.Helper()
	a := &models.Achievement{
		Title:       title,
		Description: "Opis: " + criteria,
		Badge:       "⛰",
		Criteria:    criteria,
		Rarity:      models.RarityCommon,
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

// Reload reads the user back from the database.
func Reload(t testing.TB, db *gorm.DB, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, id).Error)
	return u
}

// CountRows counts rows of model matching the query.
func CountRows(t testing.TB, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
