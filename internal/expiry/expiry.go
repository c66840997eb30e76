package expiry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxYear is the largest expiry year accepted on a card.
const MaxYear = 9999

// ValidateMonthYear checks month is 1..12 and year is 1..MaxYear.
func ValidateMonthYear(month, year int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("expiry month must be 1..12")
	}
	if year < 1 || year > MaxYear {
		return fmt.Errorf("expiry year must be 1..%d", MaxYear)
	}
	return nil
}

// EndOfMonth returns the last instant of the given month in loc (UTC when nil).
func EndOfMonth(month, year int, loc *time.Location) (time.Time, error) {
	if err := ValidateMonthYear(month, year); err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	// First day of next month
	firstNext := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	return firstNext.Add(-time.Nanosecond), nil
}

// IsExpired reports whether 'at' is strictly after the end of the expiry month.
func IsExpired(month, year int, at time.Time, loc *time.Location) (bool, error) {
	end, err := EndOfMonth(month, year, loc)
	if err != nil {
		return false, err
	}
	return at.In(end.Location()).After(end), nil
}

// BankFormat returns the expiry as MM/YYYY, the form authorization services expect.
func BankFormat(month, year int) string {
	return fmt.Sprintf("%02d/%04d", month, year)
}

// ParseBankFormat parses "MM/YYYY" into month and year.
func ParseBankFormat(in string) (int, int, error) {
	mm, yyyy, ok := strings.Cut(strings.TrimSpace(in), "/")
	if !ok || len(mm) != 2 || len(yyyy) != 4 {
		return 0, 0, fmt.Errorf("expiry must be MM/YYYY")
	}
	month, err := strconv.Atoi(mm)
	if err != nil {
		return 0, 0, fmt.Errorf("expiry month must be digits")
	}
	year, err := strconv.Atoi(yyyy)
	if err != nil {
		return 0, 0, fmt.Errorf("expiry year must be digits")
	}
	if err := ValidateMonthYear(month, year); err != nil {
		return 0, 0, err
	}
	return month, year, nil
}
