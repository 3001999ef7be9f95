// Package postgres implements the db.Store contract on PostgreSQL via pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/listify/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgreSQL error codes the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

var (
	_ db.Store      = (*DB)(nil)
	_ db.Rollbacker = (*DB)(nil)
)

// New creates a new database connection pool. maxConns of zero keeps the pgx default.
func New(ctx context.Context, databaseURL string, maxConns int) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (d *DB) Close() error {
	d.pool.Close()
	return nil
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Pool returns the underlying connection pool for advanced operations.
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// Users returns a UserRepository.
func (d *DB) Users() db.UserRepository {
	return &UserRepository{pool: d.pool}
}

// Playlists returns a PlaylistRepository.
func (d *DB) Playlists() db.PlaylistRepository {
	return &PlaylistRepository{pool: d.pool}
}

// Songs returns a SongRepository.
func (d *DB) Songs() db.SongRepository {
	return &SongRepository{pool: d.pool}
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
		err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
			for _, stmt := range db.SplitStatements(m.Up) {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
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
	err = d.pool.QueryRow(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("querying latest migration: %w", err)
	}

	for _, m := range migrations {
		if m.Version != version {
			continue
		}
		err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
			for _, stmt := range db.SplitStatements(m.Down) {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
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
	_, err := d.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return nil
}

func (d *DB) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := d.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("scanning applied migrations: %w", err)
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func isCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
