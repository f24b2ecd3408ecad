package utils

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// StrToInt64 converts a string to an int64.
func StrToInt64(s string) (int64, error) {
	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}

// ParseID parses a path identifier, rejecting zero and negative values.
func ParseID(s string) (int64, error) {
	id, err := StrToInt64(s)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive, got %d", id)
	}
	return id, nil
}

// NewNullString is a helper for string pointers, returning nil if string is empty.
// Useful for optional query parameters.
func NewNullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FormatCents renders an amount held in minor units as a fixed two-decimal string.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
