package model

import (
	"fmt"
	"time"
)

// PriceBar is one trading day of price data
type PriceBar struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	Close float64   `json:"close"`
}

// Stock represents basic stock information
type Stock struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"` // NYSE, NASDAQ
}

// EventKind selects which recurring event the anchors represent
type EventKind string

const (
	EventEarnings EventKind = "earnings"
	EventDividend EventKind = "dividend"
)

// ParseEventKind validates a mode string from flags or config
func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case EventEarnings, EventDividend:
		return EventKind(s), nil
	default:
		return "", fmt.Errorf("unknown event mode %q (want earnings or dividend)", s)
	}
}

// DateLayout is the ISO-8601 calendar date format used on the wire and in CSV files
const DateLayout = "2006-01-02"

// CivilDate drops the clock and zone of t, keeping the calendar date it shows
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO-8601 date, tolerating a trailing time component
func ParseDate(s string) (time.Time, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}
