package banksim

import (
	"encoding/json"
	"net/http"

	"github.com/alovak/cardflow-gateway/internal/bank"
	"github.com/alovak/cardflow-gateway/internal/expiry"
	"github.com/alovak/cardflow-gateway/internal/pan"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// Simulator answers authorization requests deterministically from the card number:
//   - last digit odd: authorized with a fresh authorization code
//   - last digit even: declined
//   - last digit 0: 503, the bank is unavailable
//
// Requests with missing or malformed fields, or a card number failing the Luhn
// check, get a 400.
type Simulator struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{logger: logger.With(slog.String("component", "bank_simulator"))}
}

func (s *Simulator) AppendRoutes(r chi.Router) {
	r.Post("/payments", s.authorize)
}

type errorResponse struct {
	ErrorMessage string `json:"error_message"`
}

func (s *Simulator) authorize(w http.ResponseWriter, r *http.Request) {
	var req bank.AuthorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorMessage: "malformed request"})
		return
	}

	if msg := checkRequest(req); msg != "" {
		s.logger.Info("request refused", slog.String("reason", msg))
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorMessage: msg})
		return
	}

	logger := s.logger.With(slog.String("card", pan.Mask(req.CardNumber)))

	switch last := req.CardNumber[len(req.CardNumber)-1]; {
	case last == '0':
		logger.Info("simulating outage")
		w.WriteHeader(http.StatusServiceUnavailable)
	case (last-'0')%2 == 1:
		code := uuid.New().String()
		logger.Info("authorized", slog.String("authorization_code", code))
		writeJSON(w, http.StatusOK, bank.AuthorizationResponse{Authorized: boolPtr(true), AuthorizationCode: code})
	default:
		logger.Info("declined")
		writeJSON(w, http.StatusOK, bank.AuthorizationResponse{Authorized: boolPtr(false)})
	}
}

func checkRequest(req bank.AuthorizationRequest) string {
	switch {
	case !pan.IsDigits(req.CardNumber):
		return "card_number is required and must be numeric"
	case !pan.ValidLuhn(req.CardNumber):
		return "card_number fails the Luhn check"
	case req.ExpiryDate == "":
		return "expiry_date is required"
	case req.Currency == "":
		return "currency is required"
	case req.Amount <= 0:
		return "amount is required"
	case !pan.IsDigits(req.CVV):
		return "cvv is required and must be numeric"
	}
	if _, _, err := expiry.ParseBankFormat(req.ExpiryDate); err != nil {
		return "expiry_date must be MM/YYYY"
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func boolPtr(b bool) *bool { return &b }
