package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alovak/cardflow-gateway/gateway/models"
	"github.com/alovak/cardflow-gateway/internal/events"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// ErrSubmissionFailed marks a payment that could not be authorized by the bank.
// The wrapped error carries the reason and must not be shown to callers.
var ErrSubmissionFailed = errors.New("payment could not be processed")

// DefaultPublishTimeout bounds how long a stored payment waits on its event.
const DefaultPublishTimeout = 500 * time.Millisecond

// Authorizer obtains the bank's decision for a validated payment.
type Authorizer interface {
	Authorize(ctx context.Context, req models.PaymentRequest) (models.AuthorizationOutcome, error)
}

type Service struct {
	repo      Repository
	bank      Authorizer
	validator *Validator
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	publishTimeout time.Duration
}

type ServiceOption func(*Service)

// WithPublishTimeout overrides DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func NewService(repo Repository, bank Authorizer, validator *Validator, publisher events.Publisher, logger *slog.Logger, opts ...ServiceOption) *Service {
	if validator == nil {
		validator = NewValidator()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:           repo,
		bank:           bank,
		validator:      validator,
		publisher:      publisher,
		logger:         logger.With(slog.String("component", "payments")),
		now:            time.Now,
		publishTimeout: DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates the request, asks the bank for authorization and stores the result.
// It returns ValidationErrors for invalid requests and an error matching
// ErrSubmissionFailed when the bank call fails; nothing is stored in either case.
func (s *Service) Submit(ctx context.Context, req models.PaymentRequest) (*models.PaymentRecord, error) {
	if err := s.validator.Validate(req); err != nil {
		s.logger.Debug("payment rejected by validation", slog.Any("err", err))
		return nil, err
	}

	outcome, err := s.bank.Authorize(ctx, req)
	if err != nil {
		s.logger.Info("payment authorization failed", slog.Any("err", err))
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	record, err := NewPaymentRecord(req, outcome)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("storing payment: %w", err)
	}

	logger := s.logger.With(slog.String("payment_id", record.ID.String()))
	logger.Info("payment processed", slog.String("status", record.Status.String()))

	event := models.PaymentProcessed{
		Type:       models.EventPaymentProcessed,
		Payment:    *record,
		OccurredAt: s.now().UTC(),
	}
	// the payment is stored; a lost event does not undo it, and a caller that
	// went away does not cancel it
	pubCtx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, record.ID.String(), event); err != nil {
		logger.Error("publishing payment event", slog.Any("err", err))
	}

	return record, nil
}

// Retrieve returns the stored payment or ErrNotFound.
func (s *Service) Retrieve(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("finding payment: %w", err)
	}
	return record, nil
}
