package forward

import (
	"context"
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/config"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/event"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/metrics"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/sink"
)

// Forwarder delivers traffic events to a sink in the background. Callers
// never wait for the write and never see its outcome; failures are logged
// and counted, and nothing is retried.
type Forwarder struct {
	sink    sink.Sink
	pool    *workerPool[event.TrafficEvent]
	timeout time.Duration
}

// New creates a Forwarder using conf and starts its workers. Workers stop
// when ctx is cancelled or Drain is called.
func New(ctx context.Context, s sink.Sink, conf config.ForwarderConf) *Forwarder {
	f := &Forwarder{
		sink:    s,
		timeout: time.Duration(conf.WriteTimeoutMs) * time.Millisecond,
	}
	if f.timeout <= 0 {
		f.timeout = 2 * time.Second
	}
	workers := conf.Workers
	if workers <= 0 {
		workers = 1
	}
	depth := conf.QueueDepth
	if depth <= 0 {
		depth = 1
	}
	f.pool = newWorkerPool[event.TrafficEvent](ctx, workers, depth, f.write)
	return f
}

// Forward enqueues ev for delivery. It returns false if the queue is full
// and the event was dropped.
func (f *Forwarder) Forward(ev event.TrafficEvent) bool {
	ok := f.pool.Submit(ev)
	if !ok {
		metrics.ForwardsDropped.Inc()
		slog.Debug("sink forward dropped: queue full", "path", ev.Path, "capacity", f.pool.QueueCap())
	}
	metrics.ForwardQueueUtilization.Set(f.QueueUtilization())
	return ok
}

func (f *Forwarder) write(ctx context.Context, ev event.TrafficEvent) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SinkWrites.WithLabelValues(f.sink.Name(), "error").Inc()
			slog.Error("sink write panicked", "sink", f.sink.Name(), "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	err := f.sink.WriteDataPoint(ctx, sink.FromEvent(ev))
	metrics.SinkWriteDuration.WithLabelValues(f.sink.Name()).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.SinkWrites.WithLabelValues(f.sink.Name(), "error").Inc()
		slog.Warn("sink write failed", "sink", f.sink.Name(), "event_id", ev.ID, "path", ev.Path, "err", err)
		return
	}
	metrics.SinkWrites.WithLabelValues(f.sink.Name(), "success").Inc()
}

// QueueUtilization returns queue used / capacity (0–1).
func (f *Forwarder) QueueUtilization() float64 {
	if f.pool.QueueCap() == 0 {
		return 0
	}
	return float64(f.pool.QueueLen()) / float64(f.pool.QueueCap())
}

// Drain stops accepting events and waits for queued writes to finish.
func (f *Forwarder) Drain() {
	f.pool.Drain()
	metrics.ForwardQueueUtilization.Set(0)
}
