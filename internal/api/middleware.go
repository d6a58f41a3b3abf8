package api

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/event"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/tracker"
)

const requestIDHeader = "X-Request-ID"

// statusRecorder captures the status code written by a handler. It keeps
// Hijack and Flush working so websocket upgrades pass through.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// loggingMiddleware assigns a request id when the client sent none and logs
// one line per request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)

		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", id,
		)
	})
}

// TrackTraffic records one traffic event per request served by next. The
// event is timestamped by the tracker's clock when the request completes.
func TrackTraffic(tr *tracker.Tracker, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		tr.Update(event.TrafficEvent{
			ID:           id,
			Method:       r.Method,
			Path:         r.URL.Path,
			StatusCode:   rec.status,
			ResponseTime: float64(time.Since(start).Microseconds()) / 1000,
			UserID:       r.Header.Get("X-User-ID"),
			Referer:      r.Referer(),
			UserAgent:    r.UserAgent(),
			CountryCode:  r.Header.Get("CF-IPCountry"),
		})
	})
}
