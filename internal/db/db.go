package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vytor/recall/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DSN builds the go-sqlite3 connection string used everywhere. Write
// transactions begin IMMEDIATE so a review's read-modify-write holds the
// write lock from its first statement.
func DSN(path string) string {
	return fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate&_loc=UTC", path)
}

// Open connects to the database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	log := logger.FromContext(ctx).WithPrefix("db")
	log.Info("opening database: %s", path)

	conn, err := sqlx.Open("sqlite3", DSN(path))
	if err != nil {
		log.Error("failed to open database: %v", err)
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		log.Error("failed to reach database: %v", err)
		_ = conn.Close()
		return nil, err
	}

	log.Debug("applying migrations")
	if err := Migrate(ctx, conn); err != nil {
		log.Error("failed to apply migrations: %v", err)
		_ = conn.Close()
		return nil, err
	}

	log.Info("database ready")
	return conn, nil
}

// Migrate applies every embedded migration that is not yet recorded in
// schema_migrations, in file name order.
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	log := logger.FromContext(ctx).WithPrefix("db")

	if _, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at DATETIME DEFAULT CURRENT_TIMESTAMP)`); err != nil {
		return err
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		version := entry.Name()
		applied, err := isMigrationApplied(ctx, conn, version)
		if err != nil {
			return err
		}
		if applied {
			log.Debug("migration %s already applied, skipping", version)
			continue
		}
		sqlBytes, err := migrationsFS.ReadFile("migrations/" + version)
		if err != nil {
			return err
		}
		log.Info("applying migration: %s", version)
		if _, err := conn.ExecContext(ctx, string(sqlBytes)); err != nil {
			log.Error("migration %s failed: %v", version, err)
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := conn.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return err
		}
		log.Info("migration %s applied successfully", version)
	}
	return nil
}

func isMigrationApplied(ctx context.Context, conn *sqlx.DB, version string) (bool, error) {
	var v string
	err := conn.GetContext(ctx, &v, `SELECT version FROM schema_migrations WHERE version = ?`, version)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
