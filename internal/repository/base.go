package repository

import (
	"context"
	"errors"
	"strings"

	"gorahrib/internal/database"
	"gorahrib/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// scope carries the handle a repository works on. A scope bound to a
// transaction reads and writes through it and never touches the replica or
// the cache, so evaluation inside the tx sees its own uncommitted writes.
type scope struct {
	db   *gorm.DB
	inTx bool
}

func (s scope) bind(tx *gorm.DB) scope {
	return scope{db: tx, inTx: true}
}

func (s scope) reader(ctx context.Context) *gorm.DB {
	if s.inTx {
		return s.db.WithContext(ctx)
	}
	return readDB(s.db).WithContext(ctx)
}

func (s scope) writer(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// isUniqueConstraintError reports a unique violation from postgres (23505)
// or sqlite.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func notFoundOr(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return models.NewInternalError(err)
}

func clampPage(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// counterUpdate turns a signed delta into the matching column expression.
func counterUpdate(db *gorm.DB, column string, delta int) interface{} {
	if delta >= 0 {
		return database.Increment(column, delta)
	}
	return database.ClampedDecrement(db, column, -delta)
}
