package event

import (
	"errors"
	"time"
)

// TrafficEvent is one observed request. It is immutable once ingested.
type TrafficEvent struct {
	ID           string  `json:"id"`
	Timestamp    int64   `json:"timestamp"` // ms since epoch
	Method       string  `json:"method"`
	Path         string  `json:"path"` // normalized, no query string
	StatusCode   int     `json:"statusCode"`
	ResponseTime float64 `json:"responseTime"` // ms
	UserID       string  `json:"userId,omitempty"`
	Referer      string  `json:"referer,omitempty"`
	UserAgent    string  `json:"userAgent,omitempty"`
	CountryCode  string  `json:"countryCode,omitempty"`
}

// IsError reports whether the event counts toward the error total.
func (e *TrafficEvent) IsError() bool {
	return e.StatusCode >= 400
}

// Time returns Timestamp as a time.Time.
func (e *TrafficEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Validate checks the fields an ingestion request must carry.
func (e *TrafficEvent) Validate() error {
	if e.Method == "" {
		return errors.New("method is required")
	}
	if e.Path == "" {
		return errors.New("path is required")
	}
	if e.ResponseTime < 0 {
		return errors.New("responseTime must not be negative")
	}
	return nil
}
