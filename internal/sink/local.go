package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Nop discards all data points.
type Nop struct{}

// NewNop creates a no-op sink.
func NewNop() *Nop { return &Nop{} }

func (*Nop) Name() string { return "nop" }
func (*Nop) WriteDataPoint(context.Context, DataPoint) error { return nil }
func (*Nop) Close() error { return nil }

// Memory stores data points in memory (for testing and embedding).
type Memory struct {
	mu     sync.Mutex
	points []DataPoint
	err    error
}

// NewMemory creates a memory-backed sink.
func NewMemory() *Memory { return &Memory{} }

func (*Memory) Name() string { return "memory" }

// WriteDataPoint stores dp, or returns the error set with FailWith.
func (m *Memory) WriteDataPoint(_ context.Context, dp DataPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.points = append(m.points, dp)
	return nil
}

// FailWith makes subsequent writes return err; nil restores normal writes.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Points returns all stored data points.
func (m *Memory) Points() []DataPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DataPoint, len(m.points))
	copy(out, m.points)
	return out
}

// Len returns the number of stored data points.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

func (*Memory) Close() error { return nil }

// JSONLines writes one JSON document per line to an io.Writer.
type JSONLines struct {
	name    string
	mu      sync.Mutex
	enc     *json.Encoder
	closeFn func() error
}

// NewStdout creates a sink that writes JSON lines to stdout, for
// container log aggregation.
func NewStdout() *JSONLines {
	return &JSONLines{name: "stdout", enc: json.NewEncoder(os.Stdout)}
}

// NewFile creates a sink that appends JSON lines to path.
func NewFile(path string) (*JSONLines, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink.NewFile: %w", err)
	}
	return &JSONLines{name: "file", enc: json.NewEncoder(f), closeFn: f.Close}, nil
}

// NewWriter creates a JSON lines sink over w.
func NewWriter(name string, w io.Writer) *JSONLines {
	return &JSONLines{name: name, enc: json.NewEncoder(w)}
}

func (s *JSONLines) Name() string { return s.name }

func (s *JSONLines) WriteDataPoint(_ context.Context, dp DataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(dp); err != nil {
		return fmt.Errorf("sink.%s: %w", s.name, err)
	}
	return nil
}

func (s *JSONLines) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}
