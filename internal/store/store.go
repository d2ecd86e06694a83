// Package store implements relational persistence for users, projects,
// assets, chunks, and chat history on top of pgx.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors returned by store operations.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Querier is the subset of pgxpool.Pool the store needs. pgxmock
// implements it, which keeps the repositories testable without a
// database.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store bundles all repositories over a single Querier.
type Store struct {
	db Querier
}

// New creates a Store backed by the given Querier.
func New(db Querier) *Store {
	return &Store{db: db}
}

// DB exposes the underlying Querier for callers that need raw SQL, such
// as the tabular loader and the admin reset.
func (s *Store) DB() Querier {
	return s.db
}

// translateErr maps driver errors to store sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}
