// Package sqlite implements the db.Store contract on SQLite via mattn/go-sqlite3.
//
// It backs local development and the default test suite; ":memory:" gives every
// store its own throwaway database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/justestif/listify/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DB wraps a SQLite database handle.
type DB struct {
	conn *sql.DB
}

var (
	_ db.Store      = (*DB)(nil)
	_ db.Rollbacker = (*DB)(nil)
)

// New opens the database at path, creating it if needed.
func New(ctx context.Context, path string) (*DB, error) {
	memory := path == "" || path == ":memory:"
	dsn := path + "?_foreign_keys=on"
	if memory {
		dsn = ":memory:?_foreign_keys=on"
	} else {
		dsn += "&_busy_timeout=5000&_journal_mode=WAL"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if memory {
		// each connection would otherwise see its own empty database
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Conn returns the underlying handle.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Users returns a UserRepository.
func (d *DB) Users() db.UserRepository {
	return &UserRepository{conn: d.conn}
}

// Playlists returns a PlaylistRepository.
func (d *DB) Playlists() db.PlaylistRepository {
	return &PlaylistRepository{conn: d.conn}
}

// Songs returns a SongRepository.
func (d *DB) Songs() db.SongRepository {
	return &SongRepository{conn: d.conn}
}

// Migrate applies every embedded migration that has not run yet.
func (d *DB) Migrate(ctx context.Context) error {
	migrations, err := db.LoadMigrations(migrationFS, "migrations")
	if err != nil {
		return err
	}
	if err := d.ensureMigrationsTable(ctx); err != nil {
		return err
	}
	applied, err := d.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := withTx(ctx, d.conn, func(tx *sql.Tx) error {
			for _, stmt := range db.SplitStatements(m.Up) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.Version, m.Name, time.Now().UTC())
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %04d_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration. It is a no-op on an empty schema.
func (d *DB) Rollback(ctx context.Context) error {
	migrations, err := db.LoadMigrations(migrationFS, "migrations")
	if err != nil {
		return err
	}
	if err := d.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	var version int
	err = d.conn.QueryRowContext(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("querying latest migration: %w", err)
	}

	for _, m := range migrations {
		if m.Version != version {
			continue
		}
		err := withTx(ctx, d.conn, func(tx *sql.Tx) error {
			for _, stmt := range db.SplitStatements(m.Down) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, m.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("rolling back migration %04d_%s: %w", m.Version, m.Name, err)
		}
		return nil
	}
	return fmt.Errorf("migration %d is recorded but has no source", version)
}

func (d *DB) ensureMigrationsTable(ctx context.Context) error {
	_, err := d.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return nil
}

func (d *DB) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning applied migrations: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func withTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isConstraint(err error, codes ...sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.ExtendedCode == code {
			return true
		}
	}
	return false
}

func isUnique(err error) bool {
	return isConstraint(err, sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKey(err error) bool {
	return isConstraint(err, sqlite3.ErrConstraintForeignKey)
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
