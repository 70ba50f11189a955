// Command migrate manages the GoraHrib PostgreSQL schema: the embedded SQL
// migrations under internal/database/migrations and the gorm AutoMigrate
// model list used by the hybrid schema mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gorahrib/internal/config"
	"gorahrib/internal/database"
	"gorahrib/internal/middleware"

	"gorm.io/gorm"
)

// command is one migrate subcommand. args names its positional arguments
// for the help text.
type command struct {
	name    string
	args    string
	summary string
	run     func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error
}

var commands = []command{
	{
		name:    "up",
		summary: "apply pending SQL migrations (users, peaks, checklist, achievements, friendships, forum)",
		run:     migrateUp,
	},
	{
		name:    "auto",
		summary: "sync tables with the gorm models (hybrid mode without the SQL step)",
		run:     migrateAuto,
	},
	{
		name:    "status",
		summary: "show the schema mode and applied and pending migration versions",
		run:     migrateStatus,
	},
	{
		name:    "down",
		args:    "<version>",
		summary: "roll back one migration with its .down.sql file",
		run:     migrateDown,
	},
}

var errUsage = errors.New("invalid arguments")

func main() {
	flag.Usage = func() { printUsage(flag.CommandLine.Output()) }
	flag.Parse()

	cmd, err := lookup(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	if err := execute(cmd, flag.Args()[1:]); err != nil {
		middleware.Logger.Error("migrate failed",
			slog.String("command", cmd.name),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Manage the GoraHrib database schema.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: go run ./cmd/migrate <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-18s %s\n", strings.TrimSpace(c.name+" "+c.args), c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Connection settings come from the DB_HOST, DB_PORT, DB_USER, DB_PASSWORD and DB_NAME variables.")
}

// lookup picks the subcommand named by args[0] and checks its arity.
func lookup(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errUsage
	}
	name := strings.ToLower(strings.TrimSpace(args[0]))
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if want := len(strings.Fields(c.args)); len(args)-1 < want {
			return command{}, fmt.Errorf("%w: %s needs %s", errUsage, c.name, c.args)
		}
		return c, nil
	}
	return command{}, fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func execute(cmd command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	return cmd.run(context.Background(), db, cfg, args)
}

func migrateUp(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	if err := database.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("apply sql migrations: %w", err)
	}
	middleware.Logger.Info("sql migrations applied")
	return nil
}

func migrateAuto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return fmt.Errorf("apply gorm models: %w", err)
	}
	middleware.Logger.Info("gorm models synced")
	return nil
}

func migrateStatus(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("read schema status: %w", err)
	}
	middleware.Logger.Info("schema status",
		slog.String("mode", status.Mode),
		slog.String("env", status.Environment),
		slog.Bool("run_sql", status.RunSQL),
		slog.Bool("run_auto", status.RunAutoMigrate),
		slog.Int("applied", len(status.AppliedVersions)),
		slog.Int("pending", len(status.PendingMigrations)))
	for _, m := range status.PendingMigrations {
		middleware.Logger.Info("pending migration", slog.String("migration", m.String()))
	}
	return nil
}

func migrateDown(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	version, err := parseVersion(args[0])
	if err != nil {
		return err
	}
	if err := database.RollbackMigration(ctx, db, version); err != nil {
		return fmt.Errorf("roll back %06d: %w", version, err)
	}
	middleware.Logger.Info("migration rolled back", slog.Int("version", version))
	return nil
}

func parseVersion(raw string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || version <= 0 {
		return 0, fmt.Errorf("invalid migration version %q", raw)
	}
	return version, nil
}
