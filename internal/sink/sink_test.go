package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/config"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/event"
)

func sampleEvent() event.TrafficEvent {
	return event.TrafficEvent{
		ID:           "evt-1",
		Timestamp:    1_700_000_000_000,
		Method:       "POST",
		Path:         "/checkout",
		StatusCode:   502,
		ResponseTime: 87.5,
		UserID:       "user_42",
	}
}

func TestFromEvent(t *testing.T) {
	dp := FromEvent(sampleEvent())
	assert.Equal(t, []string{"/checkout", "POST", "502"}, dp.Indexes)
	assert.Equal(t, []string{"user_42", "unknown", "direct"}, dp.Blobs)
	assert.Equal(t, []float64{87.5, 1}, dp.Doubles)
	assert.Equal(t, "evt-1", dp.ID)
}

func TestFromEvent_Fallbacks(t *testing.T) {
	dp := FromEvent(event.TrafficEvent{Method: "GET", Path: "/", StatusCode: 200, CountryCode: "IN", Referer: "https://google.com"})
	assert.Equal(t, []string{"anonymous", "IN", "https://google.com"}, dp.Blobs)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"badger", "file", "http", "memory", "nop", "redis", "stdout"}, r.Types())

	s, err := r.Build(config.SinkConf{Type: "nop"})
	require.NoError(t, err)
	assert.Equal(t, "nop", s.Name())

	_, err = r.Build(config.SinkConf{Type: "kafka"})
	assert.Error(t, err)

	_, err = r.Build(config.SinkConf{Type: "http"})
	assert.Error(t, err, "http sink without url")

	assert.Panics(t, func() { r.Register("nop", nil) })
}

func TestMemory_FailWith(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.WriteDataPoint(ctx, DataPoint{}))
	m.FailWith(errors.New("boom"))
	assert.Error(t, m.WriteDataPoint(ctx, DataPoint{}))
	m.FailWith(nil)
	require.NoError(t, m.WriteDataPoint(ctx, DataPoint{}))
	assert.Equal(t, 2, m.Len())
	assert.Len(t, m.Points(), 2)
}

func TestJSONLines_Writer(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriter("buffer", &buf)
	require.NoError(t, s.WriteDataPoint(context.Background(), FromEvent(sampleEvent())))
	require.NoError(t, s.WriteDataPoint(context.Background(), FromEvent(sampleEvent())))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var dp DataPoint
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &dp))
	assert.Equal(t, "/checkout", dp.Indexes[0])
}

func TestFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	s, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteDataPoint(context.Background(), FromEvent(sampleEvent())))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"indexes":["/checkout","POST","502"]`)
}

func TestHTTP_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ingest", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var dp DataPoint
		if err := json.NewDecoder(r.Body).Decode(&dp); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		assert.Equal(t, []float64{87.5, 1}, dp.Doubles)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewHTTP(config.HTTPSinkConf{URL: srv.URL + "/ingest", Token: " secret "}, nil)
	require.NoError(t, err)
	require.NoError(t, s.WriteDataPoint(context.Background(), FromEvent(sampleEvent())))
}

func TestHTTP_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusBadRequest, ErrInvalidArgument},
		{http.StatusNotFound, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()
			s, err := NewHTTP(config.HTTPSinkConf{URL: srv.URL}, &http.Client{Timeout: time.Second})
			require.NoError(t, err)
			err = s.WriteDataPoint(context.Background(), DataPoint{})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHTTP_ServerErrorIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	s, err := NewHTTP(config.HTTPSinkConf{URL: srv.URL}, nil)
	require.NoError(t, err)
	err = s.WriteDataPoint(context.Background(), DataPoint{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestStreamValues(t *testing.T) {
	v := streamValues(FromEvent(sampleEvent()))
	assert.Equal(t, map[string]interface{}{
		"id":      "evt-1",
		"ts":      "1700000000000",
		"index1":  "/checkout",
		"index2":  "POST",
		"index3":  "502",
		"blob1":   "user_42",
		"blob2":   "unknown",
		"blob3":   "direct",
		"double1": "87.5",
		"double2": "1",
	}, v)
}

func TestRedis_WriteFailsWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := newRedisWithClient(client, "trafficmeter:test", 100)
	defer s.Close()
	err := s.WriteDataPoint(context.Background(), DataPoint{})
	assert.Error(t, err)
}

func TestBadger_WriteAndRange(t *testing.T) {
	s, err := NewBadger(config.BadgerSinkConf{InMemory: true, Retention: time.Hour})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for i, path := range []string{"/b", "/a", "/c"} {
		ev := sampleEvent()
		ev.ID = ""
		ev.Path = path
		ev.Timestamp = int64(1_000 + i)
		require.NoError(t, s.WriteDataPoint(ctx, FromEvent(ev)))
	}

	var got []string
	require.NoError(t, s.Range(func(dp DataPoint) error {
		got = append(got, dp.Indexes[0])
		return nil
	}))
	assert.Equal(t, []string{"/b", "/a", "/c"}, got, "ordered by timestamp")
}

func TestBadger_RangeStopsOnError(t *testing.T) {
	s, err := NewBadger(config.BadgerSinkConf{InMemory: true})
	require.NoError(t, err)
	defer s.Close()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.WriteDataPoint(context.Background(), DataPoint{Timestamp: int64(i)}))
	}
	stop := errors.New("stop")
	seen := 0
	err = s.Range(func(DataPoint) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestBadger_CancelledContext(t *testing.T) {
	s, err := NewBadger(config.BadgerSinkConf{InMemory: true})
	require.NoError(t, err)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.WriteDataPoint(ctx, DataPoint{}), context.Canceled)
}
