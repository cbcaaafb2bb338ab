// Package sqlite implements store.Store on an in-memory SQLite database.
// Global intersections are computed in SQL rather than in Go.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/landmark-lite/landmark/store"
)

// LandmarkStore implements store.Store using SQLite.
type LandmarkStore struct {
	db *sql.DB
}

// New opens a store on the given go-sqlite3 data source name.
func New(dsn string) (*LandmarkStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// A single connection keeps an in-memory database alive for the
	// lifetime of the store and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &LandmarkStore{db: db}, nil
}

// NewInMemory opens a private in-memory store. The name only has to be
// unique among stores open at the same time; a run ID is a good choice.
func NewInMemory(name string) (*LandmarkStore, error) {
	return New(InMemoryDSN(name))
}

// InMemoryDSN returns the data source name of a named in-memory database.
func InMemoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=ON", url.PathEscape(name))
}

// Factory returns a function that opens and migrates a fresh in-memory
// store per run, for use as a runner store factory.
func Factory() func(ctx context.Context, runID string) (store.Store, error) {
	return func(ctx context.Context, runID string) (store.Store, error) {
		s, err := NewInMemory("landmarks-" + runID)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}
}

// Close closes the database connection. An in-memory database is discarded.
func (s *LandmarkStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations.
func (s *LandmarkStore) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.db)
}
