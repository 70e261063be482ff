package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"medstay/internal/database"
	apperrors "medstay/internal/errors"
	"medstay/internal/metrics"
)

// Advisory lock keyspace for property write locks. Two properties whose ids
// collide in the 32-bit key only serialize against each other.
const propertyLockNamespace int32 = 0x6d7374

type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// conn binds a repository either to the pool or to an open transaction.
type conn struct {
	db *database.DB
	tx *sqlx.Tx
}

func (c conn) q() querier {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// inTx runs fn in the bound transaction, or in a fresh one when unbound.
func (c conn) inTx(ctx context.Context, fn func(q querier) error) error {
	if c.tx != nil {
		return fn(c.tx)
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Repositories is the PostgreSQL Store.
type Repositories struct {
	conn
	properties   *PropertyRepository
	bookings     *BookingRepository
	availability *AvailabilityRepository
	patterns     *PatternRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return newRepositories(conn{db: db})
}

func newRepositories(c conn) *Repositories {
	return &Repositories{
		conn:         c,
		properties:   &PropertyRepository{conn: c},
		bookings:     &BookingRepository{conn: c},
		availability: &AvailabilityRepository{conn: c},
		patterns:     &PatternRepository{conn: c},
	}
}

func (r *Repositories) Properties() PropertyStore       { return r.properties }
func (r *Repositories) Bookings() BookingStore          { return r.bookings }
func (r *Repositories) Availability() AvailabilityStore { return r.availability }
func (r *Repositories) Patterns() PatternStore          { return r.patterns }

func (r *Repositories) LockProperty(ctx context.Context, propertyID int64, fn func(ctx context.Context, tx Store) error) error {
	if r.tx != nil {
		if err := acquirePropertyLock(ctx, r.tx, propertyID); err != nil {
			return err
		}
		return fn(ctx, r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := acquirePropertyLock(ctx, tx, propertyID); err != nil {
		return err
	}

	if err := fn(ctx, newRepositories(conn{db: r.db, tx: tx})); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// acquirePropertyLock blocks until the transaction owns the property's
// advisory lock. The lock is released on commit or rollback.
func acquirePropertyLock(ctx context.Context, tx *sqlx.Tx, propertyID int64) error {
	start := time.Now()
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`,
		propertyLockNamespace, int32(propertyID))
	metrics.PropertyLockWait.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("acquire lock for property %d: %w", propertyID, err)
	}
	return nil
}

// translate maps constraint violations to domain errors and wraps the rest.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23P01":
			return apperrors.Conflict("dates overlap an active booking")
		case "23505":
			return apperrors.Conflict("duplicate %s", pqErr.Constraint)
		case "23514":
			return apperrors.Validation("check constraint %s violated", pqErr.Constraint)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
