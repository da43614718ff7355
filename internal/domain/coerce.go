package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date format for session dates.
const DateLayout = "2006-01-02"

var dateLayouts = []string{DateLayout, "02.01.2006", "02/01/2006"}

var numberCleaner = strings.NewReplacer(" ", "", "\u00a0", "", "_", "")

func CoerceInt(raw string) (int, error) {
	s := numberCleaner.Replace(strings.TrimSpace(raw))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrInvalidValue, raw)
	}
	return n, nil
}

func CoerceInt64(raw string) (int64, error) {
	s := numberCleaner.Replace(strings.TrimSpace(raw))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an identifier", ErrInvalidValue, raw)
	}
	return n, nil
}

// CoerceDecimal accepts both "1.5" and "1,5" as well as digit grouping by spaces.
func CoerceDecimal(raw string) (float64, error) {
	s := numberCleaner.Replace(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, raw)
	}
	return f, nil
}

// CoerceDate parses a calendar date and returns it as midnight UTC.
func CoerceDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrInvalidValue, raw)
}

// DateOnly truncates t to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
