package models

import (
	"fmt"
	"strings"
)

type Status int

const (
	StatusAuthorized Status = iota
	StatusDeclined
	// StatusRejected is reserved for requests refused before reaching the bank.
	// Validation failures are reported directly and never produce a record with it.
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusAuthorized:
		return "Authorized"
	case StatusDeclined:
		return "Declined"
	case StatusRejected:
		return "Rejected"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "authorized":
		return StatusAuthorized, nil
	case "declined":
		return StatusDeclined, nil
	case "rejected":
		return StatusRejected, nil
	}
	return 0, fmt.Errorf("unknown payment status %q", s)
}

func (s Status) MarshalText() ([]byte, error) {
	if s < StatusAuthorized || s > StatusRejected {
		return nil, fmt.Errorf("unknown payment status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Currency is one of the ISO 4217 codes the gateway accepts.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// SupportedCurrencies lists accepted currencies in display order.
var SupportedCurrencies = []Currency{CurrencyUSD, CurrencyEUR, CurrencyGBP}

// ParseCurrency matches code case-insensitively against SupportedCurrencies.
func ParseCurrency(code string) (Currency, error) {
	upper := Currency(strings.ToUpper(code))
	for _, c := range SupportedCurrencies {
		if c == upper {
			return c, nil
		}
	}
	return "", fmt.Errorf("unsupported currency %q", code)
}

func (c *Currency) UnmarshalText(text []byte) error {
	parsed, err := ParseCurrency(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
