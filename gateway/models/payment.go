package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentRequest is the card payment submitted by a merchant.
// It is validated once and never stored as is.
type PaymentRequest struct {
	CardNumber  string `json:"card_number" validate:"required,min=14,max=19,number"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required,min=1,max=9999"`
	Currency    string `json:"currency" validate:"required,len=3,currency"`
	Amount      int64  `json:"amount" validate:"required,min=1"`
	CVV         string `json:"cvv" validate:"required,min=3,max=4,number"`
}

// AuthorizationOutcome is the bank's decision for a single payment.
type AuthorizationOutcome struct {
	Authorized        bool
	AuthorizationCode string
}

// PaymentRecord is the stored, caller-visible result of a processed payment.
type PaymentRecord struct {
	ID                 uuid.UUID `json:"id"`
	Status             Status    `json:"status"`
	LastFourCardDigits string    `json:"last_four_card_digits"`
	ExpiryMonth        int       `json:"expiry_month"`
	ExpiryYear         int       `json:"expiry_year"`
	Currency           Currency  `json:"currency"`
	Amount             int64     `json:"amount"`
}

// PaymentProcessed is published after a record has been stored.
type PaymentProcessed struct {
	Type       string        `json:"type"`
	Payment    PaymentRecord `json:"payment"`
	OccurredAt time.Time     `json:"occurred_at"`
}

const EventPaymentProcessed = "payment.processed"
