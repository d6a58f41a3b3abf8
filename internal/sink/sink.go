package sink

import (
	"context"
	"strconv"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/event"
)

// DataPoint is the normalized record written to an analytics sink.
//
//	Indexes: path, method, status code
//	Blobs:   user id, country code, referer (with fallbacks)
//	Doubles: response time in ms, and 1 as an implicit event counter
type DataPoint struct {
	ID        string    `json:"id,omitempty"`
	Timestamp int64     `json:"timestamp"`
	Indexes   []string  `json:"indexes"`
	Blobs     []string  `json:"blobs"`
	Doubles   []float64 `json:"doubles"`
}

// Sink accepts one data point per traffic event.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	WriteDataPoint(ctx context.Context, dp DataPoint) error
	Close() error
}

// FromEvent maps a traffic event into the sink's data point shape.
func FromEvent(ev event.TrafficEvent) DataPoint {
	return DataPoint{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		Indexes:   []string{ev.Path, ev.Method, strconv.Itoa(ev.StatusCode)},
		Blobs: []string{
			orDefault(ev.UserID, "anonymous"),
			orDefault(ev.CountryCode, "unknown"),
			orDefault(ev.Referer, "direct"),
		},
		Doubles: []float64{ev.ResponseTime, 1},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
