package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alovak/cardflow-gateway/gateway/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS payments (
  payment_id   TEXT PRIMARY KEY,
  status       TEXT NOT NULL,
  last4        TEXT NOT NULL,
  expiry_month INTEGER NOT NULL,
  expiry_year  INTEGER NOT NULL,
  currency     TEXT NOT NULL,
  amount       INTEGER NOT NULL,
  updated_unix INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
`

// SQLiteRepository stores records in a single sqlite file, for one-node setups.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLiteRepository opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer; an in-memory db also lives on one connection only
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, record *models.PaymentRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO payments(payment_id, status, last4, expiry_month, expiry_year, currency, amount, updated_unix)
VALUES(?,?,?,?,?,?,?,strftime('%s','now'))
ON CONFLICT(payment_id) DO UPDATE SET
  status=excluded.status,
  last4=excluded.last4,
  expiry_month=excluded.expiry_month,
  expiry_year=excluded.expiry_year,
  currency=excluded.currency,
  amount=excluded.amount,
  updated_unix=excluded.updated_unix;
`, record.ID.String(), record.Status.String(), record.LastFourCardDigits, record.ExpiryMonth, record.ExpiryYear, string(record.Currency), record.Amount)
	if err != nil {
		return fmt.Errorf("saving payment %s: %w", record.ID, err)
	}
	return nil
}

// Seed inserts a record unless one with the same id exists already.
func (r *SQLiteRepository) Seed(ctx context.Context, record *models.PaymentRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO payments(payment_id, status, last4, expiry_month, expiry_year, currency, amount)
VALUES(?,?,?,?,?,?,?);
`, record.ID.String(), record.Status.String(), record.LastFourCardDigits, record.ExpiryMonth, record.ExpiryYear, string(record.Currency), record.Amount)
	if err != nil {
		return fmt.Errorf("seeding payment %s: %w", record.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT payment_id, status, last4, expiry_month, expiry_year, currency, amount FROM payments WHERE payment_id=?;
`, id.String())
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finding payment %s: %w", id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
