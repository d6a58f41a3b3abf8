package tracker

import (
	"time"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/event"
)

// Bucket accumulates every event whose timestamp falls in one window.
// Count always equals the sum of Paths and Errors never exceeds Count.
type Bucket struct {
	Key               int64
	Count             int
	TotalResponseTime float64
	Errors            int
	Paths             map[string]int
	CreatedAt         time.Time
}

func newBucket(key int64, now time.Time) *Bucket {
	return &Bucket{
		Key:       key,
		Paths:     make(map[string]int),
		CreatedAt: now,
	}
}

func (b *Bucket) add(ev *event.TrafficEvent) {
	b.Count++
	b.TotalResponseTime += ev.ResponseTime
	if ev.IsError() {
		b.Errors++
	}
	b.Paths[ev.Path]++
}

func (b *Bucket) clone() *Bucket {
	c := *b
	c.Paths = make(map[string]int, len(b.Paths))
	for p, n := range b.Paths {
		c.Paths[p] = n
	}
	return &c
}

// windowKey maps a millisecond timestamp to its window index, flooring
// toward negative infinity.
func windowKey(tsMs, windowMs int64) int64 {
	k := tsMs / windowMs
	if tsMs%windowMs != 0 && tsMs < 0 {
		k--
	}
	return k
}
