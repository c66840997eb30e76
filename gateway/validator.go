package gateway

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/alovak/cardflow-gateway/gateway/models"
	"github.com/alovak/cardflow-gateway/internal/expiry"
	"github.com/go-playground/validator/v10"
)

// ValidationError describes one violated rule of a payment request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every violated rule of a payment request.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "invalid payment request: " + strings.Join(msgs, "; ")
}

// Fields groups messages by field name.
func (e ValidationErrors) Fields() map[string][]string {
	out := make(map[string][]string, len(e))
	for _, fe := range e {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// HasField reports whether any violation concerns field.
func (e ValidationErrors) HasField(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// fieldOrder is the declaration order of PaymentRequest; errors are reported in it.
var fieldOrder = map[string]int{
	"card_number":  0,
	"expiry_month": 1,
	"expiry_year":  2,
	"currency":     3,
	"amount":       4,
	"cvv":          5,
}

var messages = map[string]map[string]string{
	"card_number": {
		"required": "card number is required",
		"min":      "card number must be between 14 and 19 characters long",
		"max":      "card number must be between 14 and 19 characters long",
		"number":   "card number must only contain numeric characters",
	},
	"expiry_month": {
		"required": "expiry month is required",
		"min":      "expiry month must be between 1 and 12",
		"max":      "expiry month must be between 1 and 12",
	},
	"expiry_year": {
		"required": "expiry year is required",
		"min":      "expiry year must be between 1 and 9999",
		"max":      "expiry year must be between 1 and 9999",
		"future":   "expiry date must be in the future",
	},
	"currency": {
		"required": "currency is required",
		"len":      "currency must be 3 characters long",
		"currency": "currency must be one of USD, EUR, GBP",
	},
	"amount": {
		"required": "amount is required",
		"min":      "amount must be greater than 0",
	},
	"cvv": {
		"required": "cvv is required",
		"min":      "cvv must be between 3 and 4 characters long",
		"max":      "cvv must be between 3 and 4 characters long",
		"number":   "cvv must only contain numeric characters",
	},
}

// Validator checks payment requests against the gateway's rule set.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
	loc      *time.Location
}

type ValidatorOption func(*Validator)

// WithClock overrides the time source used by the expiry rule.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// WithLocation sets the location in which the expiry month ends.
func WithLocation(loc *time.Location) ValidatorOption {
	return func(v *Validator) {
		if loc != nil {
			v.loc = loc
		}
	}
}

func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		validate: validator.New(),
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(v)
	}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// registration only fails for empty tags or nil funcs
	_ = v.validate.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		_, err := models.ParseCurrency(fl.Field().String())
		return err == nil
	})
	v.validate.RegisterStructValidation(v.validateExpiry, models.PaymentRequest{})

	return v
}

// validateExpiry needs month and year together, so it runs over the whole request.
func (v *Validator) validateExpiry(sl validator.StructLevel) {
	req := sl.Current().Interface().(models.PaymentRequest)
	if expiry.ValidateMonthYear(req.ExpiryMonth, req.ExpiryYear) != nil {
		// range rules already reported the problem
		return
	}
	expired, err := expiry.IsExpired(req.ExpiryMonth, req.ExpiryYear, v.now(), v.loc)
	if err != nil || expired {
		sl.ReportError(req.ExpiryYear, "expiry_year", "ExpiryYear", "future", "")
	}
}

// Validate returns nil for a valid request, otherwise ValidationErrors.
func (v *Validator) Validate(req models.PaymentRequest) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating payment request: %w", err)
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: messageFor(fe.Field(), fe.Tag())})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return fieldOrder[out[i].Field] < fieldOrder[out[j].Field]
	})
	return out
}

func messageFor(field, tag string) string {
	if msg, ok := messages[field][tag]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid", strings.ReplaceAll(field, "_", " "))
}
