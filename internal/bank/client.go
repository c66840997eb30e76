package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alovak/cardflow-gateway/gateway/models"
	"github.com/alovak/cardflow-gateway/internal/expiry"
	"github.com/alovak/cardflow-gateway/internal/pan"
	"golang.org/x/exp/slog"
)

var (
	ErrBankUnreachable     = errors.New("bank unreachable")
	ErrBankRejectedRequest = errors.New("bank rejected request")
	ErrBankResponseInvalid = errors.New("bank response invalid")
)

// DefaultTimeout bounds a single authorization call when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// maxResponseSize caps how much of a bank response body is read.
const maxResponseSize = 1 << 20

// AuthorizationRequest is the body the bank expects on POST /payments.
type AuthorizationRequest struct {
	CardNumber string `json:"card_number"`
	ExpiryDate string `json:"expiry_date"`
	Currency   string `json:"currency"`
	Amount     int64  `json:"amount"`
	CVV        string `json:"cvv"`
}

// AuthorizationResponse is the bank's answer. Authorized is a pointer so a body
// without the field is told apart from a decline.
type AuthorizationResponse struct {
	Authorized        *bool  `json:"authorized"`
	AuthorizationCode string `json:"authorization_code"`
}

// NewAuthorizationRequest converts a validated payment request into the bank wire format.
func NewAuthorizationRequest(req models.PaymentRequest) AuthorizationRequest {
	return AuthorizationRequest{
		CardNumber: req.CardNumber,
		ExpiryDate: expiry.BankFormat(req.ExpiryMonth, req.ExpiryYear),
		Currency:   strings.ToUpper(req.Currency),
		Amount:     req.Amount,
		CVV:        req.CVV,
	}
}

// Client calls the bank's authorization endpoint. Each payment gets exactly one attempt.
type Client struct {
	Base   string
	HTTP   *http.Client
	logger *slog.Logger
}

func New(base string, hc *http.Client, logger *slog.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		Base:   strings.TrimRight(base, "/"),
		HTTP:   hc,
		logger: logger.With(slog.String("component", "bank_client")),
	}
}

// Authorize sends the payment to the bank and classifies the result.
// Failures match ErrBankUnreachable, ErrBankRejectedRequest or ErrBankResponseInvalid.
func (c *Client) Authorize(ctx context.Context, req models.PaymentRequest) (models.AuthorizationOutcome, error) {
	body, err := json.Marshal(NewAuthorizationRequest(req))
	if err != nil {
		return models.AuthorizationOutcome{}, fmt.Errorf("encoding authorization request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+"/payments", bytes.NewReader(body))
	if err != nil {
		return models.AuthorizationOutcome{}, fmt.Errorf("%w: building request: %v", ErrBankUnreachable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	logger := c.logger.With(slog.String("card", pan.Mask(req.CardNumber)))
	start := time.Now()

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		logger.Warn("bank call failed", slog.Duration("took", time.Since(start)), slog.Any("err", err))
		return models.AuthorizationOutcome{}, fmt.Errorf("%w: %w", ErrBankUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	logger = logger.With(slog.Int("status", resp.StatusCode), slog.Duration("took", time.Since(start)))

	if resp.StatusCode/100 != 2 {
		// bank bodies never leave this package
		logger.Warn("bank rejected request")
		return models.AuthorizationOutcome{}, fmt.Errorf("%w: status=%d", ErrBankRejectedRequest, resp.StatusCode)
	}
	if err != nil {
		logger.Warn("reading bank response", slog.Any("err", err))
		return models.AuthorizationOutcome{}, fmt.Errorf("%w: reading body: %w", ErrBankUnreachable, err)
	}

	outcome, err := parseAuthorizationResponse(raw)
	if err != nil {
		logger.Warn("invalid bank response", slog.Any("err", err))
		return models.AuthorizationOutcome{}, err
	}

	logger.Info("bank responded", slog.Bool("authorized", outcome.Authorized))
	return outcome, nil
}

func parseAuthorizationResponse(raw []byte) (models.AuthorizationOutcome, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return models.AuthorizationOutcome{}, fmt.Errorf("%w: empty body", ErrBankResponseInvalid)
	}

	var payload AuthorizationResponse
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return models.AuthorizationOutcome{}, fmt.Errorf("%w: decoding: %v", ErrBankResponseInvalid, err)
	}
	if payload.Authorized == nil {
		return models.AuthorizationOutcome{}, fmt.Errorf("%w: missing authorized flag", ErrBankResponseInvalid)
	}

	return models.AuthorizationOutcome{
		Authorized:        *payload.Authorized,
		AuthorizationCode: payload.AuthorizationCode,
	}, nil
}
