package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"leadgen/internal/retry"
)

const sampleJSON = `{
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
  "storage": {"driver": "sqlite", "path": "./leads.db", "busy_timeout": "3s"},
  "source": {"base_url": "https://directory.example/api", "requests_per_minute": 30, "timeout": "10s"},
  "engine": {
    "interval": "45m",
    "daily_limit": 20,
    "start_hour": 9,
    "end_hour": 17,
    "min_completeness": 50,
    "auto_analyze": true,
    "max_total_results": 500,
    "stop_on_errors": 5
  },
  "tasks": [
    {
      "location": "berlin",
      "category": "plumber",
      "limit": 25,
      "priority": 1,
      "schedule": "@hourly",
      "timeout": "20s",
      "retry": {
        "max_attempts": 4,
        "strategy": "fibonacci",
        "base_delay": "1s",
        "max_delay": "30s",
        "jitter": false
      }
    }
  ]
}`

const sampleYAML = `logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
source:
  base_url: https://directory.example/api
engine:
  interval: 30m
tasks:
  - location: hamburg
    category: bakery
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	m := NewConfigManager(writeTemp(t, "config.json", sampleJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level = %q", cfg.Logging.Level)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	ec, err := cfg.BuildEngine()
	if err != nil {
		t.Fatalf("BuildEngine: %v", err)
	}
	if ec.Interval != 45*time.Minute {
		t.Fatalf("Interval = %s, want 45m", ec.Interval)
	}
	if !ec.SkipKnown {
		t.Fatal("SkipKnown should default to true when omitted")
	}
	if ec.StartHour != 9 || ec.EndHour != 17 {
		t.Fatalf("window = %d-%d, want 9-17", ec.StartHour, ec.EndHour)
	}

	sc, err := cfg.BuildStorage()
	if err != nil {
		t.Fatalf("BuildStorage: %v", err)
	}
	if sc.BusyTimeout != 3*time.Second {
		t.Fatalf("BusyTimeout = %s, want 3s", sc.BusyTimeout)
	}

	task, err := cfg.Tasks[0].Build()
	if err != nil {
		t.Fatalf("task Build: %v", err)
	}
	if task.Query.Location != "berlin" || task.Query.Limit != 25 {
		t.Fatalf("query = %+v", task.Query)
	}
	if task.Timeout != 20*time.Second {
		t.Fatalf("Timeout = %s, want 20s", task.Timeout)
	}
	if task.Policy.Strategy != retry.StrategyFibonacci || task.Policy.MaxAttempts != 4 {
		t.Fatalf("policy = %+v", task.Policy)
	}
	if task.Policy.Jitter {
		t.Fatal("jitter: false should override the default")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	m := NewConfigManager(writeTemp(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Interval != "30m" {
		t.Fatalf("engine.interval = %q", cfg.Engine.Interval)
	}
	if cfg.Storage != nil {
		t.Fatal("storage should be nil when omitted")
	}
	sc, err := cfg.BuildStorage()
	if err != nil || sc.Driver != "memory" {
		t.Fatalf("BuildStorage = %+v (%v), want memory", sc, err)
	}

	task, err := cfg.Tasks[0].Build()
	if err != nil {
		t.Fatalf("task Build: %v", err)
	}
	if !task.Enabled || task.Priority != 1 {
		t.Fatalf("task defaults = enabled:%v priority:%d", task.Enabled, task.Priority)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	m := NewConfigManager(writeTemp(t, "config.json", `{"loging": {}}`))
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("err = %v, want unknown field error", err)
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no tasks", func(c *Config) { c.Tasks = nil }},
		{"bad interval", func(c *Config) { c.Engine.Interval = "soon" }},
		{"hour out of range", func(c *Config) { c.Engine.StartHour = 24 }},
		{"negative duration", func(c *Config) { c.Engine.MaxRuntime = "-5m" }},
		{"task without location", func(c *Config) { c.Tasks[0].Location = " " }},
		{"empty custom delays", func(c *Config) {
			c.Tasks[0].Retry = &RetryConfig{MaxAttempts: 2, Strategy: "custom"}
		}},
		{"unknown strategy", func(c *Config) {
			c.Tasks[0].Retry = &RetryConfig{MaxAttempts: 2, Strategy: "quadratic"}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				Source: SourceConfig{BaseURL: "https://x.example"},
				Tasks:  []TaskConfig{{Location: "berlin", Category: "plumber"}},
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRetryConfigCustomDelays(t *testing.T) {
	t.Parallel()

	p, err := RetryConfig{
		MaxAttempts:  3,
		Strategy:     "custom",
		CustomDelays: []string{"100ms", "1s", "5s"},
	}.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []time.Duration{100 * time.Millisecond, time.Second, 5 * time.Second}
	for i, d := range want {
		if p.CustomDelays[i] != d {
			t.Fatalf("CustomDelays[%d] = %s, want %s", i, p.CustomDelays[i], d)
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{Engine: EngineConfig{Interval: "1h"}}
	newCfg := &Config{
		Engine: EngineConfig{Interval: "30m"},
		Tasks:  []TaskConfig{{Location: "berlin", Category: "plumber"}},
	}

	changed, _ := SummarizeConfigChange(oldCfg, newCfg)
	want := []string{"engine", "tasks"}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Fatalf("changed = %v, want %v", changed, want)
		}
	}

	if c, _ := SummarizeConfigChange(newCfg, newCfg); len(c) != 0 {
		t.Fatalf("identical configs reported changes: %v", c)
	}
}
