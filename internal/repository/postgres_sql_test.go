package repository

import (
	"context"
	"testing"

	"gorahrib/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newPostgresMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestAdjustCounters_PostgresUsesGreatest(t *testing.T) {
	db, mock := newPostgresMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`(?s)UPDATE "users" SET "achievements_count"=GREATEST\(achievements_count - \$1, 0\) WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AdjustCounters(context.Background(), 7, map[string]int{ColAchievementsCount: -2}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_PostgresUniqueViolationIsConflict(t *testing.T) {
	db, mock := newPostgresMock(t)
	repo := NewChecklistRepository(db)

	mock.ExpectQuery(`(?s)INSERT INTO "checklist_items"`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_checklist_user_peak"})

	err := repo.Create(context.Background(), &models.ChecklistItem{UserID: 1, PeakID: 2, Status: models.ChecklistWishlist})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueConstraintError(t *testing.T) {
	assert.True(t, isUniqueConstraintError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueConstraintError(&pgconn.PgError{Code: "23514"}), "check violations are not conflicts")
	assert.True(t, isUniqueConstraintError(gorm.ErrDuplicatedKey))
	assert.False(t, isUniqueConstraintError(nil))
}
