package tracker

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/clock"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/config"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/event"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/filter"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/metrics"
)

// Forwarder hands an event to the durable analytics sink without waiting
// for the write. It reports false when the event was dropped.
type Forwarder interface {
	Forward(ev event.TrafficEvent) bool
}

// Tracker owns the window buckets. It is safe for concurrent use; every
// bucket creation, mutation and expiry happens under one mutex.
type Tracker struct {
	mu      sync.Mutex
	buckets map[int64]*Bucket
	timers  map[int64]clock.Timer

	windowMs int64
	ttl      time.Duration
	topN     atomic.Int64
	exclude  atomic.Pointer[filter.Filter]

	clock clock.Clock
	fwd   Forwarder
}

// New creates a Tracker. fwd may be nil, in which case events are only
// aggregated in memory.
func New(conf config.TrackerConf, fwd Forwarder, clk clock.Clock) (*Tracker, error) {
	ex, err := filter.Compile(conf.Exclude)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real()
	}
	t := &Tracker{
		buckets:  make(map[int64]*Bucket),
		timers:   make(map[int64]clock.Timer),
		windowMs: conf.Window.Milliseconds(),
		ttl:      conf.TTL,
		clock:    clk,
		fwd:      fwd,
	}
	if t.windowMs <= 0 {
		t.windowMs = time.Minute.Milliseconds()
	}
	if t.ttl <= 0 {
		t.ttl = 5 * time.Minute
	}
	t.SetTopN(conf.TopPaths)
	t.exclude.Store(ex)
	return t, nil
}

// SetTopN changes how many paths snapshots report (used on hot-reload).
func (t *Tracker) SetTopN(n int) {
	if n <= 0 {
		n = 10
	}
	t.topN.Store(int64(n))
}

// SwapFilter atomically replaces the exclude rules (used on hot-reload).
func (t *Tracker) SwapFilter(f *filter.Filter) {
	t.exclude.Store(f)
}

// Update folds ev into the bucket for its window and forwards it to the
// sink. It never fails: problems are logged and counted.
func (t *Tracker) Update(ev event.TrafficEvent) {
	if ev.Timestamp == 0 {
		ev.Timestamp = t.clock.Now().UnixMilli()
	}
	if t.exclude.Load().Match(&ev) {
		metrics.EventsFiltered.Inc()
		return
	}
	if t.aggregate(&ev) {
		metrics.EventsIngested.Inc()
	}
	t.forward(ev)
}

// TrackEvent forwards ev to the sink without touching the window buckets.
func (t *Tracker) TrackEvent(ev event.TrafficEvent) {
	if ev.Timestamp == 0 {
		ev.Timestamp = t.clock.Now().UnixMilli()
	}
	if t.exclude.Load().Match(&ev) {
		metrics.EventsFiltered.Inc()
		return
	}
	t.forward(ev)
}

func (t *Tracker) forward(ev event.TrafficEvent) {
	if t.fwd == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.IngestFailures.Inc()
			slog.Error("traffic forward failed", "panic", r, "path", ev.Path)
		}
	}()
	t.fwd.Forward(ev)
}

func (t *Tracker) aggregate(ev *event.TrafficEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IngestFailures.Inc()
			slog.Error("traffic aggregation failed", "panic", r, "path", ev.Path)
			ok = false
		}
	}()

	key := windowKey(ev.Timestamp, t.windowMs)
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.lookupLocked(key, now)
	if b == nil {
		b = newBucket(key, now)
		t.buckets[key] = b
		t.timers[key] = t.clock.AfterFunc(t.ttl, func() { t.expire(key, b) })
		metrics.BucketsCreated.Inc()
		metrics.BucketsActive.Set(float64(len(t.buckets)))
	}
	b.add(ev)
	return true
}

// lookupLocked returns the live bucket for key. A bucket past its TTL is
// removed on sight, so a late expiry timer never exposes stale counts.
func (t *Tracker) lookupLocked(key int64, now time.Time) *Bucket {
	b, ok := t.buckets[key]
	if !ok {
		return nil
	}
	if now.Sub(b.CreatedAt) >= t.ttl {
		t.removeLocked(key)
		metrics.BucketsExpired.Inc()
		return nil
	}
	return b
}

// expire is the deferred callback for one bucket. It only removes the
// exact bucket it was scheduled for.
func (t *Tracker) expire(key int64, b *Bucket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.buckets[key]; ok && cur == b {
		delete(t.buckets, key)
		delete(t.timers, key)
		metrics.BucketsExpired.Inc()
		metrics.BucketsActive.Set(float64(len(t.buckets)))
	}
}

func (t *Tracker) removeLocked(key int64) {
	if tm, ok := t.timers[key]; ok {
		tm.Stop()
		delete(t.timers, key)
	}
	delete(t.buckets, key)
	metrics.BucketsActive.Set(float64(len(t.buckets)))
}

// Invalidate drops the bucket for the given window key and cancels its
// pending expiry. It reports whether a bucket was present.
func (t *Tracker) Invalidate(key int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.buckets[key]; !ok {
		return false
	}
	t.removeLocked(key)
	return true
}

// Stop cancels every pending expiry and discards all buckets.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.buckets {
		t.removeLocked(key)
	}
}

// CurrentKey returns the window key that "now" maps to.
func (t *Tracker) CurrentKey() int64 {
	return windowKey(t.clock.Now().UnixMilli(), t.windowMs)
}

// WindowKey returns the window key for a millisecond timestamp.
func (t *Tracker) WindowKey(tsMs int64) int64 {
	return windowKey(tsMs, t.windowMs)
}

// Bucket returns a copy of the live bucket for key.
func (t *Tracker) Bucket(key int64) (*Bucket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.lookupLocked(key, t.clock.Now())
	if b == nil {
		return nil, false
	}
	return b.clone(), true
}

// ActiveBuckets returns how many buckets are held in memory.
func (t *Tracker) ActiveBuckets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

func (t *Tracker) current() *Bucket {
	b, _ := t.Bucket(t.CurrentKey())
	return b
}
