// Package catalog is the durable, transactional store for cards, state,
// tags, relations, review events, recommendations, and flags: database/sql
// over github.com/mattn/go-sqlite3 with a versioned migration runner.
// Every caller needs exactly one transaction per logical operation
// (one whole sync pass, one grade or suspend in a review), so the transaction
// surface is a single RunInTx helper.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AM-Campbell/sr/internal/clock"
)

// ErrCardNotFound is returned when a lookup by id matches no row.
var ErrCardNotFound = errors.New("catalog: card not found")

// Store is the catalog: a single SQLite file, one writer at a time, many
// concurrent readers.
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

// Open opens (creating if absent) the SQLite file at path and brings its
// schema up to date.
func Open(path string, clk clock.Clock) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: ping %s: %w", path, err)
	}
	s := &Store{db: db, clock: clk}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Clock returns the store's injected time source, so callers (sync,
// review) stamp rows with the same clock the store itself would use.
func (s *Store) Clock() clock.Clock { return s.clock }

// RunInTx runs fn inside one transaction: commit on nil error, rollback
// otherwise.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit: %w", err)
	}
	return nil
}
