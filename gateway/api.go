package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alovak/cardflow-gateway/gateway/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxRequestSize caps payment request bodies.
const maxRequestSize = 64 << 10

// API is a HTTP API for the payment gateway
type API struct {
	payments *Service
}

func NewAPI(payments *Service) *API {
	return &API{
		payments: payments,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/api/payments", func(r chi.Router) {
		r.Post("/", a.submitPayment)
		r.Get("/", a.getPaymentByQuery)
		r.Get("/{paymentID}", a.getPayment)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

type validationResponse struct {
	Errors map[string][]string `json:"errors"`
}

func (a *API) submitPayment(w http.ResponseWriter, r *http.Request) {
	req := models.PaymentRequest{}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize)).Decode(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	record, err := a.payments.Submit(r.Context(), req)
	if err != nil {
		var invalid ValidationErrors
		switch {
		case errors.As(err, &invalid):
			writeJSON(w, http.StatusBadRequest, validationResponse{Errors: invalid.Fields()})
		case errors.Is(err, ErrSubmissionFailed):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: ErrSubmissionFailed.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (a *API) getPayment(w http.ResponseWriter, r *http.Request) {
	a.writePayment(w, r, chi.URLParam(r, "paymentID"))
}

func (a *API) getPaymentByQuery(w http.ResponseWriter, r *http.Request) {
	a.writePayment(w, r, r.URL.Query().Get("id"))
}

func (a *API) writePayment(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payment id"})
		return
	}

	record, err := a.payments.Retrieve(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "payment not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
