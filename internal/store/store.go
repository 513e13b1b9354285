package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating a record whose id is already taken.
var ErrExists = errors.New("already exists")

// Space is a persisted space definition: its id and the size of its grid.
type Space struct {
	ID        string
	Name      string
	Width     int
	Height    int
	CreatedAt time.Time
}

// SpaceStore handles space persistence.
type SpaceStore interface {
	// CreateSpace stores a new space. Returns ErrExists if the id is taken.
	CreateSpace(ctx context.Context, space *Space) error

	// GetSpace retrieves a space by id. Returns ErrNotFound if missing.
	GetSpace(ctx context.Context, id string) (*Space, error)

	// ListSpaces lists every space ordered by id.
	ListSpaces(ctx context.Context) ([]*Space, error)

	// DeleteSpace removes a space. Returns ErrNotFound if missing.
	DeleteSpace(ctx context.Context, id string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	SpaceStore

	// Close closes the underlying database connection.
	Close() error
}
