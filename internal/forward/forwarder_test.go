package forward

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/config"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/event"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/sink"
)

// blockingSink holds every write until release is closed.
type blockingSink struct {
	release chan struct{}
	started chan struct{}
	writes  atomic.Int64
}

func newBlockingSink() *blockingSink {
	return &blockingSink{release: make(chan struct{}), started: make(chan struct{}, 16)}
}

func (*blockingSink) Name() string { return "blocking" }

func (s *blockingSink) WriteDataPoint(ctx context.Context, _ sink.DataPoint) error {
	s.started <- struct{}{}
	<-s.release
	s.writes.Add(1)
	return nil
}

func (*blockingSink) Close() error { return nil }

type panicSink struct{}

func (panicSink) Name() string { return "panic" }
func (panicSink) WriteDataPoint(context.Context, sink.DataPoint) error { panic("boom") }
func (panicSink) Close() error { return nil }

func conf(workers, depth int) config.ForwarderConf {
	return config.ForwarderConf{Workers: workers, QueueDepth: depth, WriteTimeoutMs: 1000}
}

func TestForward_DeliversEveryEvent(t *testing.T) {
	mem := sink.NewMemory()
	f := New(context.Background(), mem, conf(4, 100))
	for i := 0; i < 50; i++ {
		require.True(t, f.Forward(event.TrafficEvent{Method: "GET", Path: "/", StatusCode: 200}))
	}
	f.Drain()
	assert.Equal(t, 50, mem.Len())
	assert.Equal(t, []string{"/", "GET", "200"}, mem.Points()[0].Indexes)
}

func TestForward_DropsWhenQueueFull(t *testing.T) {
	bs := newBlockingSink()
	f := New(context.Background(), bs, conf(1, 2))

	require.True(t, f.Forward(event.TrafficEvent{Path: "/1"}))
	<-bs.started // worker holds the first event; queue is empty again

	assert.True(t, f.Forward(event.TrafficEvent{Path: "/2"}))
	assert.True(t, f.Forward(event.TrafficEvent{Path: "/3"}))
	assert.Equal(t, 1.0, f.QueueUtilization())
	assert.False(t, f.Forward(event.TrafficEvent{Path: "/4"}), "full queue drops")

	close(bs.release)
	f.Drain()
	assert.Equal(t, int64(3), bs.writes.Load())
}

func TestForward_SinkErrorsAreSwallowed(t *testing.T) {
	mem := sink.NewMemory()
	mem.FailWith(errors.New("sink down"))
	f := New(context.Background(), mem, conf(1, 10))
	assert.True(t, f.Forward(event.TrafficEvent{Path: "/"}))
	f.Drain()
	assert.Equal(t, 0, mem.Len())
}

func TestForward_SinkPanicDoesNotKillWorker(t *testing.T) {
	f := New(context.Background(), panicSink{}, conf(1, 10))
	for i := 0; i < 3; i++ {
		f.Forward(event.TrafficEvent{Path: "/"})
	}
	assert.NotPanics(t, f.Drain)
}

func TestForward_AfterDrainIsRejected(t *testing.T) {
	f := New(context.Background(), sink.NewNop(), conf(1, 10))
	f.Drain()
	assert.False(t, f.Forward(event.TrafficEvent{Path: "/"}))
	assert.NotPanics(t, f.Drain, "drain is idempotent")
}
