package gateway

import (
	"context"
	"fmt"

	"github.com/alovak/cardflow-gateway/gateway/models"
	"github.com/google/uuid"
)

var ErrNotFound = fmt.Errorf("not found")

// Repository stores payment records by id.
type Repository interface {
	// Save inserts the record or overwrites the one with the same id.
	Save(ctx context.Context, record *models.PaymentRecord) error
	// Get returns ErrNotFound when no record has the id.
	Get(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error)
	Ping(ctx context.Context) error
}

// FixturePaymentID identifies the record seeded for demos and smoke tests.
var FixturePaymentID = uuid.MustParse("f32bd16f-e103-425e-9fa8-faa4accc3b93")

func FixturePayment() *models.PaymentRecord {
	return &models.PaymentRecord{
		ID:                 FixturePaymentID,
		Status:             models.StatusAuthorized,
		LastFourCardDigits: "1234",
		ExpiryMonth:        12,
		ExpiryYear:         2027,
		Currency:           models.CurrencyUSD,
		Amount:             1000,
	}
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner) (*models.PaymentRecord, error) {
	var (
		p        models.PaymentRecord
		status   string
		currency string
	)
	if err := row.Scan(&p.ID, &status, &p.LastFourCardDigits, &p.ExpiryMonth, &p.ExpiryYear, &currency, &p.Amount); err != nil {
		return nil, err
	}
	var err error
	if p.Status, err = models.ParseStatus(status); err != nil {
		return nil, err
	}
	if p.Currency, err = models.ParseCurrency(currency); err != nil {
		return nil, err
	}
	return &p, nil
}
