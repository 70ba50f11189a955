// Package database handles database connections, migrations and transactions.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorahrib/internal/config"
	"gorahrib/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// DB is the global primary database connection.
	DB *gorm.DB
	// ReadDB is an optional read replica. GetReadDB falls back to DB.
	ReadDB *gorm.DB
)

const slowQuery = 200 * time.Millisecond

// slogGormLogger sends gorm's output to the application logger. Failed
// statements log at error, slow ones at warn, everything else at debug.
type slogGormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

func newGormLogger(level logger.LogLevel) *slogGormLogger {
	return &slogGormLogger{log: middleware.Logger, level: level, slow: slowQuery}
}

func (l *slogGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *slogGormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.log.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *slogGormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.log.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *slogGormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.log.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	attrs := []any{slog.String("sql", sql), slog.Int64("rows", rows), slog.Duration("elapsed", elapsed)}

	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	switch {
	case failed && l.level >= logger.Error:
		l.log.ErrorContext(ctx, "gorm query failed", append(attrs, slog.String("error", err.Error()))...)
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		l.log.WarnContext(ctx, "gorm slow query", attrs...)
	case l.level >= logger.Info:
		l.log.DebugContext(ctx, "gorm query", attrs...)
	}
}

// endpoint is one postgres server the API talks to.
type endpoint struct {
	host, port, user, password, name, sslMode string
}

func (e endpoint) dsn() string {
	sslMode := e.sslMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		e.host, e.port, e.user, e.password, e.name, sslMode)
}

func primaryEndpoint(cfg *config.Config) endpoint {
	return endpoint{cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode}
}

func replicaEndpoint(cfg *config.Config) endpoint {
	return endpoint{cfg.DBReadHost, cfg.DBReadPort, cfg.DBReadUser, cfg.DBReadPassword, cfg.DBName, cfg.DBSSLMode}
}

func open(ep endpoint, cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(ep.dsn()), &gorm.Config{Logger: newGormLogger(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", ep.host, err)
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// ConnectOptions controls side effects of ConnectWithOptions.
type ConnectOptions struct {
	// ApplySchema runs SQL migrations and/or AutoMigrate according to DB_SCHEMA_MODE.
	ApplySchema bool
}

// Connect opens the primary (and optional replica) connection and applies the schema.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
}

// ConnectWithOptions opens the database connections described by cfg and
// installs them as DB and ReadDB.
func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	primary, err := open(primaryEndpoint(cfg), cfg)
	if err != nil {
		return nil, err
	}
	middleware.Logger.Info("database connected", slog.String("host", cfg.DBHost))

	if opts.ApplySchema {
		if err := ApplySchema(context.Background(), primary, cfg); err != nil {
			return nil, err
		}
	}

	DB, ReadDB = primary, nil
	if cfg.DBReadHost == "" {
		return DB, nil
	}
	replica, err := open(replicaEndpoint(cfg), cfg)
	if err != nil {
		// reads stay on the primary
		middleware.Logger.Warn("read replica unavailable, using primary", slog.String("error", err.Error()))
		return DB, nil
	}
	ReadDB = replica
	return DB, nil
}

// GetReadDB returns the replica connection when configured, otherwise the primary.
func GetReadDB() *gorm.DB {
	if ReadDB != nil {
		return ReadDB
	}
	return DB
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql.DB: %w", err)
	}

	maxOpen := cmpOr(cfg.DBMaxOpenConns, 25)
	maxIdle := min(cmpOr(cfg.DBMaxIdleConns, 5), maxOpen)
	lifetime := time.Duration(cmpOr(cfg.DBConnMaxLifetimeMinutes, 5)) * time.Minute

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)
	return nil
}

// cmpOr returns v when positive, otherwise def.
func cmpOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
