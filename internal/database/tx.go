package database

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

type txKey struct{}

// txScope is a transaction plus the callbacks waiting on its outcome. Only
// the UnitOfWork.Do call that opened the transaction runs them.
type txScope struct {
	tx *gorm.DB

	mu         sync.Mutex
	onCommit   []func()
	onRollback []func()
}

func (s *txScope) add(list *[]func(), fn func()) {
	s.mu.Lock()
	*list = append(*list, fn)
	s.mu.Unlock()
}

func (s *txScope) settle(committed bool) {
	s.mu.Lock()
	hooks := s.onRollback
	if committed {
		hooks = s.onCommit
	}
	s.onCommit, s.onRollback = nil, nil
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func scopeFrom(ctx context.Context) (*txScope, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(txKey{}).(*txScope)
	return s, ok && s != nil && s.tx != nil
}

// WithTx returns a context carrying tx. UnitOfWork.Do joins it instead of
// opening a new transaction. A tx handed out by Do keeps its owner, so
// callbacks registered through the returned context run when that Do ends.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	if tx != nil && tx.Statement != nil && tx.Statement.Context != nil {
		if owner, ok := scopeFrom(tx.Statement.Context); ok {
			return context.WithValue(ctx, txKey{}, owner)
		}
	}
	return context.WithValue(ctx, txKey{}, &txScope{tx: tx})
}

// TxFromContext returns the transaction stored by WithTx, if any.
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	s, ok := scopeFrom(ctx)
	if !ok {
		return nil, false
	}
	return s.tx, true
}

// AfterCommit runs fn once the transaction carried by ctx has committed, and
// drops it if that transaction rolls back. Without a transaction in ctx the
// work is already durable and fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if s, ok := scopeFrom(ctx); ok {
		s.add(&s.onCommit, fn)
		return
	}
	fn()
}

// AfterRollback runs fn if the transaction carried by ctx rolls back. Without
// a transaction in ctx there is nothing left to undo and fn is dropped.
func AfterRollback(ctx context.Context, fn func()) {
	if s, ok := scopeFrom(ctx); ok {
		s.add(&s.onRollback, fn)
	}
}

// UnitOfWork runs a function inside one database transaction.
type UnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork returns a UnitOfWork over db.
func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Do runs fn in a transaction. A returned error or a panic rolls back every
// write made through tx and the error is returned unchanged; nil commits.
// When ctx already carries a transaction, fn runs inside it and the outer
// owner decides commit or rollback, and when AfterCommit callbacks fire.
func (u *UnitOfWork) Do(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	if s, ok := scopeFrom(ctx); ok {
		return fn(s.tx.WithContext(ctx))
	}

	scope := &txScope{}
	defer func() {
		if r := recover(); r != nil {
			scope.settle(false)
			panic(r)
		}
		scope.settle(err == nil)
	}()
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope.tx = tx.WithContext(context.WithValue(ctx, txKey{}, scope))
		return fn(scope.tx)
	})
}

// DB returns the connection the unit of work opens transactions on.
func (u *UnitOfWork) DB() *gorm.DB {
	return u.db
}

// isSQLite reports whether db talks to sqlite, which spells GREATEST as MAX.
func isSQLite(db *gorm.DB) bool {
	return db.Dialector != nil && db.Dialector.Name() == "sqlite"
}

// Increment returns an update expression adding n to column.
func Increment(column string, n int) interface{} {
	return gorm.Expr(fmt.Sprintf("%s + ?", column), n)
}

// ClampedDecrement returns an update expression subtracting n from column
// without going below zero.
func ClampedDecrement(db *gorm.DB, column string, n int) interface{} {
	if isSQLite(db) {
		return gorm.Expr(fmt.Sprintf("MAX(%s - ?, 0)", column), n)
	}
	return gorm.Expr(fmt.Sprintf("GREATEST(%s - ?, 0)", column), n)
}

// SavePoint runs fn between a savepoint and, on failure, a rollback to it.
// The surrounding transaction stays usable after a failed fn.
func SavePoint(tx *gorm.DB, name string, fn func(tx *gorm.DB) error) error {
	if err := tx.SavePoint(name).Error; err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.RollbackTo(name).Error; rbErr != nil {
			return fmt.Errorf("rollback to %s: %w (after %v)", name, rbErr, err)
		}
		return err
	}
	return nil
}
