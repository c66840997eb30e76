package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alovak/cardflow-gateway/gateway"
	"github.com/alovak/cardflow-gateway/gateway/models"
	"github.com/alovak/cardflow-gateway/internal/bank"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAuthorizer struct {
	mu       sync.Mutex
	calls    int
	outcome  models.AuthorizationOutcome
	err      error
	received []models.PaymentRequest
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, req models.PaymentRequest) (models.AuthorizationOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.received = append(f.received, req)
	return f.outcome, f.err
}

func (f *fakeAuthorizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	events []any
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.events = append(f.events, value)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

// countingRepository records how many times Save is called.
type countingRepository struct {
	*gateway.MemoryRepository
	mu    sync.Mutex
	saves int
	err   error
}

func (r *countingRepository) Save(ctx context.Context, record *models.PaymentRecord) error {
	r.mu.Lock()
	r.saves++
	r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	return r.MemoryRepository.Save(ctx, record)
}

func (r *countingRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type serviceFixture struct {
	service   *gateway.Service
	repo      *countingRepository
	bank      *fakeAuthorizer
	publisher *fakePublisher
}

func newServiceFixture(outcome models.AuthorizationOutcome, bankErr error) *serviceFixture {
	f := &serviceFixture{
		repo:      &countingRepository{MemoryRepository: gateway.NewMemoryRepository()},
		bank:      &fakeAuthorizer{outcome: outcome, err: bankErr},
		publisher: &fakePublisher{},
	}
	f.service = gateway.NewService(f.repo, f.bank, gateway.NewValidator(), f.publisher, discardLogger)
	return f
}

func nextYearRequest() models.PaymentRequest {
	return models.PaymentRequest{
		CardNumber:  "4242424242424242",
		ExpiryMonth: 12,
		ExpiryYear:  time.Now().Year() + 1,
		Currency:    "USD",
		Amount:      1050,
		CVV:         "123",
	}
}

func TestService_SubmitAuthorized(t *testing.T) {
	f := newServiceFixture(models.AuthorizationOutcome{Authorized: true, AuthorizationCode: "auth-code-1"}, nil)
	req := nextYearRequest()

	record, err := f.service.Submit(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, models.PaymentRecord{
		ID:                 record.ID,
		Status:             models.StatusAuthorized,
		LastFourCardDigits: "4242",
		ExpiryMonth:        12,
		ExpiryYear:         req.ExpiryYear,
		Currency:           models.CurrencyUSD,
		Amount:             1050,
	}, *record)

	stored, err := f.service.Retrieve(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, record, stored)

	require.Equal(t, 1, f.bank.Calls())
	require.Equal(t, req, f.bank.received[0])
}

func TestService_SubmitDeclined(t *testing.T) {
	f := newServiceFixture(models.AuthorizationOutcome{Authorized: false}, nil)

	record, err := f.service.Submit(context.Background(), nextYearRequest())
	require.NoError(t, err)
	require.Equal(t, models.StatusDeclined, record.Status)

	stored, err := f.service.Retrieve(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDeclined, stored.Status)
}

func TestService_SubmitInvalidCardNumber(t *testing.T) {
	for _, card := range []string{"", "4242", "42424242424242424242", "4242 4242 4242 4242", "abcdefghijklmnop"} {
		f := newServiceFixture(models.AuthorizationOutcome{Authorized: true}, nil)
		req := nextYearRequest()
		req.CardNumber = card

		record, err := f.service.Submit(context.Background(), req)
		require.Nil(t, record)

		var verrs gateway.ValidationErrors
		require.ErrorAs(t, err, &verrs, "card %q", card)
		require.True(t, verrs.HasField("card_number"), "card %q", card)
		require.Zero(t, f.bank.Calls())
		require.Zero(t, f.repo.Saves())
	}
}

func TestService_SubmitExpiredCard(t *testing.T) {
	f := newServiceFixture(models.AuthorizationOutcome{Authorized: true}, nil)
	req := nextYearRequest()
	req.ExpiryYear = time.Now().Year() - 1

	_, err := f.service.Submit(context.Background(), req)

	var verrs gateway.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.True(t, verrs.HasField("expiry_year"))
	require.Zero(t, f.bank.Calls())
	require.Zero(t, f.repo.Saves())
}

func TestService_SubmitUnsupportedCurrency(t *testing.T) {
	f := newServiceFixture(models.AuthorizationOutcome{Authorized: true}, nil)
	req := nextYearRequest()
	req.Currency = "JPY"

	_, err := f.service.Submit(context.Background(), req)

	var verrs gateway.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Equal(t, []string{"currency must be one of USD, EUR, GBP"}, verrs.Fields()["currency"])
	require.Zero(t, f.bank.Calls())
	require.Zero(t, f.repo.Saves())
}

func TestService_SubmitBankFailures(t *testing.T) {
	for _, bankErr := range []error{
		fmt.Errorf("%w: dial tcp: connection refused", bank.ErrBankUnreachable),
		fmt.Errorf("%w: status=500", bank.ErrBankRejectedRequest),
		fmt.Errorf("%w: empty body", bank.ErrBankResponseInvalid),
	} {
		f := newServiceFixture(models.AuthorizationOutcome{}, bankErr)

		record, err := f.service.Submit(context.Background(), nextYearRequest())
		require.Nil(t, record)
		require.ErrorIs(t, err, gateway.ErrSubmissionFailed)
		require.ErrorIs(t, err, bankErr)
		require.Equal(t, 1, f.bank.Calls())
		require.Zero(t, f.repo.Saves())
		require.Empty(t, f.publisher.events)
	}
}

func TestService_SubmitStoreFailure(t *testing.T) {
	f := newServiceFixture(models.AuthorizationOutcome{Authorized: true}, nil)
	boom := errors.New("disk full")
	f.repo.err = boom

	_, err := f.service.Submit(context.Background(), nextYearRequest())
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, gateway.ErrSubmissionFailed)
	require.Empty(t, f.publisher.events)
}

func TestService_PublishesProcessedEvent(t *testing.T) {
	f := newServiceFixture(models.AuthorizationOutcome{Authorized: true, AuthorizationCode: "secret-code"}, nil)

	record, err := f.service.Submit(context.Background(), nextYearRequest())
	require.NoError(t, err)

	require.Equal(t, []string{record.ID.String()}, f.publisher.keys)
	require.Len(t, f.publisher.events, 1)

	event, ok := f.publisher.events[0].(models.PaymentProcessed)
	require.True(t, ok)
	require.Equal(t, models.EventPaymentProcessed, event.Type)
	require.Equal(t, *record, event.Payment)
	require.False(t, event.OccurredAt.IsZero())

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret-code")
	require.NotContains(t, string(raw), "4242424242424242")
}

func TestService_PublishFailureKeepsPayment(t *testing.T) {
	f := newServiceFixture(models.AuthorizationOutcome{Authorized: true}, nil)
	f.publisher.err = errors.New("broker down")

	record, err := f.service.Submit(context.Background(), nextYearRequest())
	require.NoError(t, err)

	_, err = f.service.Retrieve(context.Background(), record.ID)
	require.NoError(t, err)
}

// stalledPublisher blocks like a writer facing an unreachable broker.
type stalledPublisher struct {
	err chan error
}

func (p *stalledPublisher) Publish(ctx context.Context, key string, value any) error {
	<-ctx.Done()
	p.err <- ctx.Err()
	return ctx.Err()
}

func (p *stalledPublisher) Close() error { return nil }

func TestService_StalledPublisherIsBounded(t *testing.T) {
	publisher := &stalledPublisher{err: make(chan error, 1)}
	repo := gateway.NewMemoryRepository()
	service := gateway.NewService(repo, &fakeAuthorizer{outcome: models.AuthorizationOutcome{Authorized: true}},
		gateway.NewValidator(), publisher, discardLogger, gateway.WithPublishTimeout(20*time.Millisecond))

	start := time.Now()
	record, err := service.Submit(context.Background(), nextYearRequest())
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)
	require.ErrorIs(t, <-publisher.err, context.DeadlineExceeded)

	_, err = repo.Get(context.Background(), record.ID)
	require.NoError(t, err)
}

func TestService_RetrieveUnknown(t *testing.T) {
	f := newServiceFixture(models.AuthorizationOutcome{}, nil)

	_, err := f.service.Retrieve(context.Background(), uuid.New())
	require.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestService_ConcurrentSubmissions(t *testing.T) {
	f := newServiceFixture(models.AuthorizationOutcome{Authorized: true}, nil)

	const n = 50
	ids := make(chan uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := f.service.Submit(context.Background(), nextYearRequest())
			if err == nil {
				ids <- record.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uuid.UUID]bool{}
	for id := range ids {
		require.False(t, seen[id])
		seen[id] = true

		_, err := f.service.Retrieve(context.Background(), id)
		require.NoError(t, err)
	}
	require.Len(t, seen, n)
}
