// Package postgres implements storage.Store on PostgreSQL. The checkout
// commit boundary maps to one sql.Tx; the stock decrement is a single
// conditional UPDATE checked by affected rows.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"

	"github.com/shelfwise/bookshop/internal/domain/book"
	"github.com/shelfwise/bookshop/internal/domain/cart"
	"github.com/shelfwise/bookshop/internal/domain/inventory"
	"github.com/shelfwise/bookshop/internal/domain/order"
	"github.com/shelfwise/bookshop/internal/domain/payment"
	"github.com/shelfwise/bookshop/internal/domain/review"
	"github.com/shelfwise/bookshop/internal/storage"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps either the pool (top level) or one transaction (inside
// WithinTx). Repositories issue queries through q so the same code runs in
// both scopes.
type Store struct {
	db *sql.DB // nil when this Store is a transaction view
	q  querier
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Store{db: db, q: db}, nil
}

func (s *Store) RunMigrations(dir string) error {
	driver, err := migratepg.WithInstance(s.db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("postgres: migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
	if err != nil {
		return fmt.Errorf("postgres: migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Carts() cart.Repository       { return &cartRepo{s} }
func (s *Store) Orders() order.Repository     { return &orderRepo{s} }
func (s *Store) Payments() payment.Repository { return &paymentRepo{s} }
func (s *Store) Reviews() review.Repository   { return &reviewRepo{s} }
func (s *Store) Catalog() book.Catalog        { return &catalog{s} }
func (s *Store) Ledger() inventory.Ledger     { return &ledger{s} }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Store) error) error {
	if s.db == nil {
		// Already inside a transaction; join it.
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}

	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &Store{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	done = true
	return nil
}

// mapError translates driver errors into the domain taxonomy. Storage
// internals never reach callers beyond these sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pqErr.Constraint, "reviews") {
				return review.ErrDuplicate
			}
			return order.ErrConflict
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return storage.ErrConflict
		}
	}
	return err
}
