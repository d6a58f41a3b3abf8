package tracker

import (
	"log/slog"
	"sort"
)

// PathCount is one entry of a top-paths list.
type PathCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// TrafficMetrics is the point-in-time view of the current window.
// RequestsPerMinute and RequestsPerHour both report the current window's
// count; only one window of history is consulted.
type TrafficMetrics struct {
	TotalRequests     int                    `json:"totalRequests"`
	RequestsPerMinute int                    `json:"requestsPerMinute"`
	RequestsPerHour   int                    `json:"requestsPerHour"`
	AvgResponseTime   float64                `json:"avgResponseTime"`
	ErrorRate         float64                `json:"errorRate"`
	TopPaths          []PathCount            `json:"topPaths"`
	TopRoutes         []PathCount            `json:"topRoutes"`
	UserTraffic       map[string]UserTraffic `json:"userTraffic"`
}

// RouteTraffic narrows the current window to one path. AvgResponseTime and
// Errors are bucket-wide; the bucket keeps no per-path latency or errors.
type RouteTraffic struct {
	Count           int     `json:"count"`
	AvgResponseTime float64 `json:"avgResponseTime"`
	Errors          int     `json:"errors"`
}

// UserTraffic is reported for API compatibility only. Per-user activity is
// left to the analytics sink, so it is always zero.
type UserTraffic struct {
	Count         int   `json:"count"`
	FirstAccessed int64 `json:"firstAccessed"` // ms since epoch
	LastAccessed  int64 `json:"lastAccessed"`  // ms since epoch
}

func emptyMetrics() TrafficMetrics {
	return TrafficMetrics{
		TopPaths:    []PathCount{},
		TopRoutes:   []PathCount{},
		UserTraffic: map[string]UserTraffic{},
	}
}

// TrafficMetrics computes the snapshot for the window containing now. It
// returns the zero-value snapshot when there is no live bucket and never
// panics.
func (t *Tracker) TrafficMetrics() (m TrafficMetrics) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("traffic metrics query failed", "panic", r)
			m = emptyMetrics()
		}
	}()

	m = emptyMetrics()
	b := t.current()
	if b == nil || b.Count == 0 {
		return m
	}
	m.TotalRequests = b.Count
	m.RequestsPerMinute = b.Count
	m.RequestsPerHour = b.Count
	m.AvgResponseTime = round2(b.TotalResponseTime / float64(b.Count))
	m.ErrorRate = round2(float64(b.Errors) / float64(b.Count) * 100)
	m.TopPaths = topPaths(b.Paths, int(t.topN.Load()))
	m.TopRoutes = append([]PathCount(nil), m.TopPaths...)
	return m
}

// RouteTraffic reports the current window's count for route.
func (t *Tracker) RouteTraffic(route string) (rt RouteTraffic) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("route traffic query failed", "panic", r, "route", route)
			rt = RouteTraffic{}
		}
	}()

	b := t.current()
	if b == nil {
		return RouteTraffic{}
	}
	rt.Count = b.Paths[route]
	if b.Count > 0 {
		rt.AvgResponseTime = b.TotalResponseTime / float64(b.Count)
	}
	rt.Errors = b.Errors
	return rt
}

// UserTraffic always returns a zero count stamped with the current time.
func (t *Tracker) UserTraffic(userID string) UserTraffic {
	now := t.clock.Now().UnixMilli()
	return UserTraffic{FirstAccessed: now, LastAccessed: now}
}

// topPaths sorts by count descending and keeps the first n. Equal counts
// are ordered by path so output is stable.
func topPaths(paths map[string]int, n int) []PathCount {
	out := make([]PathCount, 0, len(paths))
	for p, c := range paths {
		out = append(out, PathCount{Path: p, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Path < out[j].Path
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
