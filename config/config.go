// Package config loads TaskProcessor configuration from TOML files. The
// core (engine package) never parses files itself — its constructor only
// accepts an engine.ProcessorConfig struct; this package builds that
// struct from a .toml document the way the distilled spec's §10.3
// ambient-stack expansion describes.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Swind/taskcore/engine"
)

// OverloadAction mirrors engine.OverloadAction as a TOML-friendly string
// ("ignore" or "cancel") instead of an integer, since the raw enum value
// is an implementation detail.
type OverloadAction string

const (
	OverloadActionIgnore OverloadAction = "ignore"
	OverloadActionCancel OverloadAction = "cancel"
)

// Engine maps onto engine.ProcessorConfig plus the three runtime-tunable
// overload settings, matching the TOML document's [engine] table.
// time.Duration fields are plain TOML integers in nanoseconds —
// BurntSushi/toml decodes them by their underlying int64 type, not by
// parsing a "10ms"-style string.
type Engine struct {
	Name                   string         `toml:"name"`
	WorkerThreads          int            `toml:"worker_threads"`
	ThreadName             string         `toml:"thread_name"`
	ProfilerThreshold      time.Duration  `toml:"profiler_threshold"`
	MaxTaskQueueWaitTime   time.Duration  `toml:"max_task_queue_wait_time"`
	MaxTaskQueueWaitLength int64          `toml:"max_task_queue_wait_length"`
	OverloadAction         OverloadAction `toml:"overload_action"`
}

// Metrics maps onto the [metrics] table controlling the Prometheus HTTP
// endpoint in cmd/taskprocd.
type Metrics struct {
	Enabled      bool          `toml:"enabled"`
	ListenAddr   string        `toml:"listen_addr"`
	PollInterval time.Duration `toml:"poll_interval"`
	MetricsPath  string        `toml:"metrics_path"`
}

// Config is the root document loaded from a .toml file.
type Config struct {
	Engine  Engine  `toml:"engine"`
	Metrics Metrics `toml:"metrics"`
}

// Default returns a Config with the same defaults a hand-written
// ProcessorConfig would need: one worker, no overload limits, metrics
// enabled on :9090 at /metrics, polled every second.
func Default() Config {
	return Config{
		Engine: Engine{
			Name:          "default",
			WorkerThreads: 1,
			ThreadName:    "taskproc-worker",
		},
		Metrics: Metrics{
			Enabled:      true,
			ListenAddr:   ":9090",
			PollInterval: time.Second,
			MetricsPath:  "/metrics",
		},
	}
}

// Load reads and decodes a TOML document at path, filling in defaults for
// any field the document omits.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config: %s: unrecognized keys: %v", path, undecoded)
	}
	return cfg, nil
}

// ProcessorConfig converts the [engine] table into an
// engine.ProcessorConfig, the struct the core constructor actually wants.
func (e Engine) ProcessorConfig() engine.ProcessorConfig {
	return engine.ProcessorConfig{
		Name:              e.Name,
		WorkerThreads:     e.WorkerThreads,
		ThreadName:        e.ThreadName,
		ProfilerThreshold: e.ProfilerThreshold,
	}
}

// ToEngineOverloadAction converts the TOML-friendly string into the
// engine's enum, returning an error for anything else.
func (a OverloadAction) ToEngineOverloadAction() (engine.OverloadAction, error) {
	switch a {
	case "", OverloadActionIgnore:
		return engine.OverloadIgnore, nil
	case OverloadActionCancel:
		return engine.OverloadCancel, nil
	default:
		return 0, fmt.Errorf("config: unknown overload_action %q", a)
	}
}
