package gateway

import (
	"fmt"

	"github.com/alovak/cardflow-gateway/gateway/models"
	"github.com/alovak/cardflow-gateway/internal/pan"
	"github.com/google/uuid"
)

// NewPaymentRecord combines a validated request with the bank outcome.
// Only the last 4 digits of the card survive; the CVV and authorization code are dropped.
func NewPaymentRecord(req models.PaymentRequest, outcome models.AuthorizationOutcome) (*models.PaymentRecord, error) {
	currency, err := models.ParseCurrency(req.Currency)
	if err != nil {
		return nil, fmt.Errorf("building payment record: %w", err)
	}

	status := models.StatusDeclined
	if outcome.Authorized {
		status = models.StatusAuthorized
	}

	return &models.PaymentRecord{
		ID:                 uuid.New(),
		Status:             status,
		LastFourCardDigits: pan.LastN(req.CardNumber, 4),
		ExpiryMonth:        req.ExpiryMonth,
		ExpiryYear:         req.ExpiryYear,
		Currency:           currency,
		Amount:             req.Amount,
	}, nil
}
