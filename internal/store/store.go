package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrNotFound is returned (wrapped) when a row does not exist
var ErrNotFound = errors.New("not found")

// ErrSlugTaken is returned when an artwork slug collides with an existing row
var ErrSlugTaken = errors.New("slug already taken")

// ErrDuplicateIdempotencyKey is returned when an order with the same idempotency key exists
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// ErrPaymentIntentUsed is returned when another order already references the payment intent
var ErrPaymentIntentUsed = errors.New("payment intent already used")

// ErrOriginalSold is returned when an order claims an original that is no longer for sale
var ErrOriginalSold = errors.New("original already sold")

// ErrStatusChanged is returned when a conditional status update finds the row in another state
var ErrStatusChanged = errors.New("order status changed concurrently")

const uniqueViolation = "23505"

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection for readiness probes
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, committing only if fn succeeds
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
