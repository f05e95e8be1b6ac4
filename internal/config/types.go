package config

// Config is the daemon's file configuration. It is accepted as JSON or
// YAML (decided by file extension); YAML is coerced to JSON so both go
// through the same strict decoder.
//
// All durations are Go duration strings (e.g. "500ms", "45m", "2h").
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage selects the lead store. Nil means the in-memory store,
	// which loses data on restart.
	Storage *StorageConfig `json:"storage,omitempty"`

	Source SourceConfig `json:"source"`
	Engine EngineConfig `json:"engine"`

	// Status exposes a read-only JSON snapshot over HTTP. Nil means
	// disabled.
	Status *StatusConfig `json:"status,omitempty"`

	Tasks []TaskConfig `json:"tasks"`
}

// StatusConfig controls the optional status HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8090").
//   - If you bind to a non-loopback address, set a token or explicitly
//     allow_insecure.
type StatusConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8090"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects and parameterizes the persistence driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./leads.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`         // sqlite, bolt
	Addr        string `json:"addr,omitempty"`         // redis
	Password    string `json:"password,omitempty"`     // redis (do not log)
	DB          int    `json:"db,omitempty"`           // redis
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// SourceConfig parameterizes the upstream lead directory the daemon
// fetches from.
type SourceConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key,omitempty"` // optional bearer token (do not log)

	// RequestsPerMinute throttles outbound fetches. 0 disables the
	// limiter.
	RequestsPerMinute int    `json:"requests_per_minute,omitempty"`
	Timeout           string `json:"timeout,omitempty"` // HTTP client timeout
}

// EngineConfig mirrors engine.Config with file-friendly field types.
//
// Defaults (when fields are omitted/zero):
//   - interval: "1h"
//   - daily_limit: 100
//   - stop_on_errors: 10
//   - history_size: 200
//   - skip_known: true
type EngineConfig struct {
	Interval      string `json:"interval,omitempty"`
	MaxConcurrent int    `json:"max_concurrent,omitempty"`
	DailyLimit    int    `json:"daily_limit,omitempty"`

	// Operating window, hours in 24h local time. start_hour > end_hour
	// means an overnight window; equal values disable the hour gate.
	StartHour      int  `json:"start_hour,omitempty"`
	EndHour        int  `json:"end_hour,omitempty"`
	WeekendEnabled bool `json:"weekend_enabled,omitempty"`

	MinCompleteness int `json:"min_completeness,omitempty"`
	// SkipKnown is a pointer so "omitted" (default true) is
	// distinguishable from an explicit false.
	SkipKnown   *bool `json:"skip_known,omitempty"`
	AutoAnalyze bool  `json:"auto_analyze,omitempty"`

	MaxTotalResults int    `json:"max_total_results,omitempty"`
	MaxRuntime      string `json:"max_runtime,omitempty"`
	StopOnErrors    int    `json:"stop_on_errors,omitempty"`

	HistorySize int `json:"history_size,omitempty"`
}

// TaskConfig is one recurring collection job.
type TaskConfig struct {
	ID       string `json:"id,omitempty"` // generated when omitted
	Location string `json:"location"`
	Category string `json:"category"`
	Limit    int    `json:"limit,omitempty"`
	Priority int    `json:"priority,omitempty"` // 1 = highest; defaults to 1

	// Enabled is a pointer so "omitted" defaults to true.
	Enabled *bool `json:"enabled,omitempty"`

	// Schedule is an optional cron spec (e.g. "0 9 * * MON-FRI" or
	// "@hourly") overriding the engine interval for this task.
	Schedule string `json:"schedule,omitempty"`

	Timeout string       `json:"timeout,omitempty"` // per attempt
	Retry   *RetryConfig `json:"retry,omitempty"`   // nil means defaults
}

// RetryConfig mirrors retry.Policy with file-friendly field types.
type RetryConfig struct {
	MaxAttempts   int      `json:"max_attempts,omitempty"`
	Strategy      string   `json:"strategy,omitempty"` // fixed|linear|exponential|fibonacci|custom
	BaseDelay     string   `json:"base_delay,omitempty"`
	MaxDelay      string   `json:"max_delay,omitempty"`
	BackoffFactor float64  `json:"backoff_factor,omitempty"`
	Jitter        *bool    `json:"jitter,omitempty"`
	JitterRange   float64  `json:"jitter_range,omitempty"`
	CustomDelays  []string `json:"custom_delays,omitempty"`
}
