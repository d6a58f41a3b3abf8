package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/config"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/event"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/filter"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/metrics"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/tracker"
)

const maxEventBytes = 64 << 10

// QueueReporter exposes forward queue pressure for the readiness probe.
type QueueReporter interface {
	QueueUtilization() float64
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	tracker  *tracker.Tracker
	queue    QueueReporter
	loader   *config.Loader
	upgrader websocket.Upgrader
	root     http.Handler

	quit      chan struct{}
	closeOnce sync.Once
}

// New creates an HTTP handler and registers all routes. Config reloads from
// the loader, whether triggered by the file watcher or by the reload
// endpoint, are applied to the tracker.
func New(tr *tracker.Tracker, queue QueueReporter, loader *config.Loader) *Handler {
	h := &Handler{
		tracker: tr,
		queue:   queue,
		loader:  loader,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		quit: make(chan struct{}),
	}
	loader.OnChange(h.applyConfig)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/traffic", h.getTraffic)
	mux.HandleFunc("POST /v1/traffic/events", h.ingestEvent)
	mux.HandleFunc("GET /v1/traffic/users/{id}", h.getUserTraffic)
	mux.HandleFunc("GET /v1/traffic/stream", h.streamTraffic)
	mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	var root http.Handler = mux
	if loader.Config().Tracker.TrackSelf {
		root = TrackTraffic(tr, root)
	}
	h.root = loggingMiddleware(root)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// Close ends all live stream connections. It is safe to call more than once.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

func (h *Handler) applyConfig(cfg *config.Config) {
	f, err := filter.Compile(cfg.Tracker.Exclude)
	if err != nil {
		slog.Warn("exclude rules not applied", "err", err)
		return
	}
	h.tracker.SwapFilter(f)
	h.tracker.SetTopN(cfg.Tracker.TopPaths)
	slog.Info("tracker config applied", "exclude_rules", len(f.Rules()), "top_paths", cfg.Tracker.TopPaths)
}

type routeResponse struct {
	Route string `json:"route"`
	tracker.RouteTraffic
}

// GET /v1/traffic[?route=]: current window snapshot, or one route of it.
func (h *Handler) getTraffic(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")

	var body interface{}
	if err := safely(func() {
		q := r.URL.Query()
		if q.Has("route") {
			route := q.Get("route")
			body = routeResponse{Route: route, RouteTraffic: h.tracker.RouteTraffic(route)}
			return
		}
		body = h.tracker.TrafficMetrics()
	}); err != nil {
		slog.Error("get traffic failed", "err", err)
		writeInternalError(w, "Failed to get traffic metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// POST /v1/traffic/events: record one request observed elsewhere.
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var ev event.TrafficEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if err := ev.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.StatusCode == 0 {
		ev.StatusCode = http.StatusOK
	}

	h.tracker.Update(ev)
	writeJSON(w, http.StatusOK, map[string]bool{
		"success": true,
		"tracked": true,
	})
}

// GET /v1/traffic/users/{id}
func (h *Handler) getUserTraffic(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":  id,
		"traffic": h.tracker.UserTraffic(id),
	})
}

// POST /v1/config/reload: re-read the config file and apply it.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":      true,
		"exclude_rules": len(cfg.Tracker.Exclude),
		"top_paths":     cfg.Tracker.TopPaths,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the forward queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.queue.QueueUtilization()
	metrics.ForwardQueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
		"active_buckets":    h.tracker.ActiveBuckets(),
	})
}

// safely runs fn and converts a panic into an error.
func safely(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	fn()
	return nil
}
