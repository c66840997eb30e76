package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alovak/cardflow-gateway/gateway/models"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"
)

const pgSchema = `
CREATE SCHEMA IF NOT EXISTS gateway;
CREATE TABLE IF NOT EXISTS gateway.payments (
    payment_id   uuid PRIMARY KEY,
    status       text        NOT NULL,
    last4        char(4)     NOT NULL,
    expiry_month smallint    NOT NULL,
    expiry_year  smallint    NOT NULL,
    currency     char(3)     NOT NULL,
    amount       bigint      NOT NULL,
    created_at   timestamptz NOT NULL DEFAULT now(),
    updated_at   timestamptz NOT NULL DEFAULT now()
);
`

// PGRepository stores records in postgres.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository constructs a db-backed repository.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

// Migrate creates the payments table when missing.
func (r *PGRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, pgSchema); err != nil {
		return fmt.Errorf("migrating payments schema: %w", err)
	}
	return nil
}

func (r *PGRepository) Save(ctx context.Context, record *models.PaymentRecord) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO gateway.payments(payment_id, status, last4, expiry_month, expiry_year, currency, amount)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (payment_id) DO UPDATE
           SET status=excluded.status, last4=excluded.last4,
               expiry_month=excluded.expiry_month, expiry_year=excluded.expiry_year,
               currency=excluded.currency, amount=excluded.amount, updated_at=now()
    `, record.ID, record.Status.String(), record.LastFourCardDigits, record.ExpiryMonth, record.ExpiryYear, string(record.Currency), record.Amount)
	if err != nil {
		return fmt.Errorf("saving payment %s: %w", record.ID, err)
	}
	return nil
}

// Seed inserts a record unless one with the same id exists already.
func (r *PGRepository) Seed(ctx context.Context, record *models.PaymentRecord) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO gateway.payments(payment_id, status, last4, expiry_month, expiry_year, currency, amount)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, record.ID, record.Status.String(), record.LastFourCardDigits, record.ExpiryMonth, record.ExpiryYear, string(record.Currency), record.Amount)
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("seeding payment %s: %w", record.ID, err)
	}
	return nil
}

func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT payment_id, status, last4, expiry_month, expiry_year, currency, amount
          FROM gateway.payments WHERE payment_id=$1
    `, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finding payment %s: %w", id, err)
	}
	return p, nil
}

// Ping returns DB readiness
func (r *PGRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
