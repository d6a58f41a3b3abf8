package config

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/filter"
)

// Validate checks the config for:
//   - Required fields for the selected sink
//   - Window/TTL consistency (a bucket must outlive its own window)
//   - Exclude rules that fail to parse
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		add("log.level: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		add("log.format: must be text or json, got %q", cfg.Log.Format)
	}

	t := cfg.Tracker
	if t.Window <= 0 {
		add("tracker.window must be positive")
	}
	if t.TTL <= t.Window {
		add("tracker.ttl (%s) must be greater than tracker.window (%s)", t.TTL, t.Window)
	}
	if t.TopPaths < 0 {
		add("tracker.top_paths must not be negative")
	}
	if _, err := filter.Compile(t.Exclude); err != nil {
		add("tracker.exclude: %s", err)
	}

	f := cfg.Forwarder
	if f.Workers < 1 {
		add("forwarder.workers must be at least 1")
	}
	if f.QueueDepth < 1 {
		add("forwarder.queue_depth must be at least 1")
	}
	if f.WriteTimeoutMs < 1 {
		add("forwarder.write_timeout_ms must be at least 1")
	}

	s := cfg.Sink
	switch s.Type {
	case "nop", "stdout", "memory":
	case "file":
		if s.File.Path == "" {
			add("sink.file.path is required for sink type file")
		}
	case "http":
		if s.HTTP.URL == "" {
			add("sink.http.url is required for sink type http")
		}
	case "redis":
		if s.Redis.Addr == "" {
			add("sink.redis.addr is required for sink type redis")
		}
		if s.Redis.MaxLen < 0 {
			add("sink.redis.max_len must not be negative")
		}
	case "badger":
		if s.Badger.Dir == "" && !s.Badger.InMemory {
			add("sink.badger.dir is required unless sink.badger.in_memory is set")
		}
		if s.Badger.Retention < 0 {
			add("sink.badger.retention must not be negative")
		}
	default:
		add("sink.type: unknown type %q", s.Type)
	}

	if cfg.Stream.Interval <= 0 {
		add("stream.interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
