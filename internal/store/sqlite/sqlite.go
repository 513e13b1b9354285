package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirespace-server/internal/core"
	"github.com/vovakirdan/wirespace-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS spaces (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	width      INTEGER NOT NULL,
	height     INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ store.Store      = (*SQLiteStore)(nil)
	_ core.SpaceLookup = (*SQLiteStore)(nil)
)

// New opens the database at dbPath and makes sure the schema exists.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, EnsureSchema)
}

// NewWithSetup opens the database at dbPath and runs setup on it before the
// store is handed out. Tests use it to seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps one shared
	// database for ":memory:".
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// EnsureSchema creates the tables the store needs if they are missing.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== SpaceStore implementation ====

// CreateSpace inserts a new space.
func (s *SQLiteStore) CreateSpace(ctx context.Context, space *store.Space) error {
	query := `
		INSERT INTO spaces (id, name, width, height)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, space.ID, space.Name, space.Width, space.Height); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("space %q: %w", space.ID, store.ErrExists)
		}
		return fmt.Errorf("insert space: %w", err)
	}

	created, err := s.GetSpace(ctx, space.ID)
	if err != nil {
		return err
	}
	space.CreatedAt = created.CreatedAt
	return nil
}

// GetSpace retrieves a space by id.
func (s *SQLiteStore) GetSpace(ctx context.Context, id string) (*store.Space, error) {
	query := `
		SELECT id, name, width, height, created_at
		FROM spaces
		WHERE id = ?
	`
	var space store.Space
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&space.ID,
		&space.Name,
		&space.Width,
		&space.Height,
		&space.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("space %q: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query space: %w", err)
	}

	return &space, nil
}

// ListSpaces lists all spaces ordered by id.
func (s *SQLiteStore) ListSpaces(ctx context.Context) ([]*store.Space, error) {
	query := `
		SELECT id, name, width, height, created_at
		FROM spaces
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query spaces: %w", err)
	}
	defer rows.Close()

	spaces := make([]*store.Space, 0)
	for rows.Next() {
		var space store.Space
		if err := rows.Scan(&space.ID, &space.Name, &space.Width, &space.Height, &space.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		spaces = append(spaces, &space)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spaces: %w", err)
	}

	return spaces, nil
}

// DeleteSpace removes a space by id.
func (s *SQLiteStore) DeleteSpace(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM spaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete space: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("space %q: %w", id, store.ErrNotFound)
	}
	return nil
}

// ==== core.SpaceLookup implementation ====

// LookupSpace resolves a space for a join. Missing spaces map to
// core.ErrSpaceNotFound.
func (s *SQLiteStore) LookupSpace(ctx context.Context, id string) (core.Space, error) {
	space, err := s.GetSpace(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.Space{}, fmt.Errorf("lookup %q: %w", id, core.ErrSpaceNotFound)
		}
		return core.Space{}, err
	}
	return core.Space{
		ID:     space.ID,
		Name:   space.Name,
		Bounds: core.Bounds{Width: space.Width, Height: space.Height},
	}, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
