package config

import (
	"fmt"
	"strings"
	"time"

	logx "leadgen/pkg/logx"

	"leadgen/internal/engine"
	"leadgen/internal/lead"
	"leadgen/internal/retry"
	"leadgen/internal/status"
	"leadgen/internal/storage"
)

// Validate checks everything that can be checked without touching the
// network or filesystem. Watch() runs it before publishing a reload.
func (c *Config) Validate() error {
	if _, err := c.BuildEngine(); err != nil {
		return err
	}
	if _, err := c.BuildStorage(); err != nil {
		return err
	}
	if _, err := c.BuildSourceTimeout(); err != nil {
		return err
	}
	if len(c.Tasks) == 0 {
		return fmt.Errorf("config: at least one task is required")
	}
	for i := range c.Tasks {
		if _, err := c.Tasks[i].Build(); err != nil {
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
	}
	return nil
}

// BuildLogging maps the logging section onto the log service config.
func (c *Config) BuildLogging() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}

// BuildEngine parses durations and checks window bounds.
func (c *Config) BuildEngine() (engine.Config, error) {
	e := c.Engine

	interval, err := ParseDurationField("engine.interval", e.Interval)
	if err != nil {
		return engine.Config{}, err
	}
	maxRuntime, err := ParseDurationField("engine.max_runtime", e.MaxRuntime)
	if err != nil {
		return engine.Config{}, err
	}
	if e.StartHour < 0 || e.StartHour > 23 {
		return engine.Config{}, fmt.Errorf("engine.start_hour: must be in [0,23], got %d", e.StartHour)
	}
	if e.EndHour < 0 || e.EndHour > 23 {
		return engine.Config{}, fmt.Errorf("engine.end_hour: must be in [0,23], got %d", e.EndHour)
	}
	if e.MinCompleteness < 0 || e.MinCompleteness > 100 {
		return engine.Config{}, fmt.Errorf("engine.min_completeness: must be in [0,100], got %d", e.MinCompleteness)
	}

	skipKnown := true
	if e.SkipKnown != nil {
		skipKnown = *e.SkipKnown
	}

	return engine.Config{
		Interval:        interval,
		MaxConcurrent:   e.MaxConcurrent,
		DailyLimit:      e.DailyLimit,
		StartHour:       e.StartHour,
		EndHour:         e.EndHour,
		WeekendEnabled:  e.WeekendEnabled,
		MinCompleteness: e.MinCompleteness,
		SkipKnown:       skipKnown,
		AutoAnalyze:     e.AutoAnalyze,
		MaxTotalResults: e.MaxTotalResults,
		MaxRuntime:      maxRuntime,
		StopOnErrors:    e.StopOnErrors,
		HistorySize:     e.HistorySize,
	}, nil
}

// BuildStorage maps the storage section onto the store config. A nil
// section selects the memory driver.
func (c *Config) BuildStorage() (storage.Config, error) {
	if c.Storage == nil {
		return storage.Config{Driver: "memory"}, nil
	}
	busy, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		Addr:        c.Storage.Addr,
		Password:    c.Storage.Password,
		DB:          c.Storage.DB,
		BusyTimeout: busy,
	}, nil
}

// BuildStatus maps the status section onto the status server config.
// A nil section disables the server.
func (c *Config) BuildStatus() status.Config {
	if c.Status == nil {
		return status.Config{}
	}
	return status.Config{
		Enabled:       c.Status.Enabled,
		Addr:          c.Status.Addr,
		Token:         c.Status.Token,
		AllowInsecure: c.Status.AllowInsecure,
	}
}

// BuildSourceTimeout parses the HTTP client timeout, defaulting to 30s.
func (c *Config) BuildSourceTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("source.timeout", c.Source.Timeout, 30*time.Second)
}

// Build converts one task entry into an engine task.
func (t TaskConfig) Build() (engine.Task, error) {
	if strings.TrimSpace(t.Location) == "" {
		return engine.Task{}, fmt.Errorf("location is required")
	}
	if strings.TrimSpace(t.Category) == "" {
		return engine.Task{}, fmt.Errorf("category is required")
	}

	timeout, err := ParseDurationField("timeout", t.Timeout)
	if err != nil {
		return engine.Task{}, err
	}

	policy := retry.DefaultPolicy()
	if t.Retry != nil {
		policy, err = t.Retry.Build()
		if err != nil {
			return engine.Task{}, err
		}
	}
	if err := policy.Validate(); err != nil {
		return engine.Task{}, err
	}

	priority := t.Priority
	if priority <= 0 {
		priority = 1
	}
	enabled := true
	if t.Enabled != nil {
		enabled = *t.Enabled
	}

	return engine.Task{
		ID: t.ID,
		Query: lead.Query{
			Location: t.Location,
			Category: t.Category,
			Limit:    t.Limit,
		},
		Priority: priority,
		Enabled:  enabled,
		Schedule: t.Schedule,
		Timeout:  timeout,
		Policy:   policy,
	}, nil
}

// Build converts a retry section into a policy, starting from the
// executor defaults so partial sections stay sane.
func (r RetryConfig) Build() (retry.Policy, error) {
	p := retry.DefaultPolicy()

	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if s := strings.TrimSpace(r.Strategy); s != "" {
		p.Strategy = retry.Strategy(strings.ToLower(s))
	}
	if r.BaseDelay != "" {
		d, err := ParseDurationField("retry.base_delay", r.BaseDelay)
		if err != nil {
			return retry.Policy{}, err
		}
		p.BaseDelay = d
	}
	if r.MaxDelay != "" {
		d, err := ParseDurationField("retry.max_delay", r.MaxDelay)
		if err != nil {
			return retry.Policy{}, err
		}
		p.MaxDelay = d
	}
	if r.BackoffFactor > 0 {
		p.BackoffFactor = r.BackoffFactor
	}
	if r.Jitter != nil {
		p.Jitter = *r.Jitter
	}
	if r.JitterRange > 0 {
		p.JitterRange = r.JitterRange
	}
	if len(r.CustomDelays) > 0 {
		p.CustomDelays = make([]time.Duration, 0, len(r.CustomDelays))
		for i, raw := range r.CustomDelays {
			d, err := ParseDurationField(fmt.Sprintf("retry.custom_delays[%d]", i), raw)
			if err != nil {
				return retry.Policy{}, err
			}
			p.CustomDelays = append(p.CustomDelays, d)
		}
	}
	return p, nil
}
