package config

import "time"

// Config is the top-level YAML structure.
type Config struct {
	Version   string        `yaml:"version"`
	Log       LogConf       `yaml:"log"`
	Server    ServerConf    `yaml:"server"`
	Tracker   TrackerConf   `yaml:"tracker"`
	Forwarder ForwarderConf `yaml:"forwarder"`
	Sink      SinkConf      `yaml:"sink"`
	Stream    StreamConf    `yaml:"stream"`
}

// LogConf selects the slog handler.
type LogConf struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// ServerConf holds HTTP server timeouts.
type ServerConf struct {
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// TrackerConf tunes the in-memory window aggregator.
type TrackerConf struct {
	Window    time.Duration `yaml:"window"`
	TTL       time.Duration `yaml:"ttl"`
	TopPaths  int           `yaml:"top_paths"`
	Exclude   []string      `yaml:"exclude"`    // filter rules; matching events are ignored
	TrackSelf bool          `yaml:"track_self"` // record requests served by this process
}

// ForwarderConf holds the sink delivery pool settings.
type ForwarderConf struct {
	Workers        int `yaml:"workers"`
	QueueDepth     int `yaml:"queue_depth"`
	WriteTimeoutMs int `yaml:"write_timeout_ms"`
}

// SinkConf selects and configures the durable analytics sink.
type SinkConf struct {
	Type   string         `yaml:"type"` // nop | stdout | file | http | redis | badger
	File   FileSinkConf   `yaml:"file"`
	HTTP   HTTPSinkConf   `yaml:"http"`
	Redis  RedisSinkConf  `yaml:"redis"`
	Badger BadgerSinkConf `yaml:"badger"`
}

type FileSinkConf struct {
	Path string `yaml:"path"`
}

type HTTPSinkConf struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type RedisSinkConf struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"` // approximate stream cap; 0 = unbounded
}

type BadgerSinkConf struct {
	Dir       string        `yaml:"dir"`
	InMemory  bool          `yaml:"in_memory"`
	Retention time.Duration `yaml:"retention"` // 0 = keep forever
}

// StreamConf controls the live snapshot websocket.
type StreamConf struct {
	Interval time.Duration `yaml:"interval"`
}
