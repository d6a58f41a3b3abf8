package sink

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/config"
)

// Factory builds a sink from its configuration.
type Factory func(cfg config.SinkConf) (Sink, error)

// Registry maps sink type strings to their factories.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a Registry with every built-in sink type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("nop", func(config.SinkConf) (Sink, error) { return NewNop(), nil })
	r.Register("memory", func(config.SinkConf) (Sink, error) { return NewMemory(), nil })
	r.Register("stdout", func(config.SinkConf) (Sink, error) { return NewStdout(), nil })
	r.Register("file", func(c config.SinkConf) (Sink, error) { return NewFile(c.File.Path) })
	r.Register("http", func(c config.SinkConf) (Sink, error) { return NewHTTP(c.HTTP, nil) })
	r.Register("redis", func(c config.SinkConf) (Sink, error) { return NewRedis(c.Redis) })
	r.Register("badger", func(c config.SinkConf) (Sink, error) { return NewBadger(c.Badger) })
	return r
}

// Register adds a factory. Panics on duplicate type to surface misconfiguration early.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typ]; exists {
		panic(fmt.Sprintf("sink registry: duplicate type %q", typ))
	}
	r.factories[typ] = f
}

// Build constructs the sink selected by cfg.Type.
func (r *Registry) Build(cfg config.SinkConf) (Sink, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no sink registered for type %q", cfg.Type)
	}
	s, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s sink: %w", cfg.Type, err)
	}
	return s, nil
}

// Types returns all registered sink type strings, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
