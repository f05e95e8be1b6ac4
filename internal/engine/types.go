package engine

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"leadgen/internal/lead"
	"leadgen/internal/retry"
)

// Status is the engine lifecycle state.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusError   Status = "error"
)

// StopReason records why the control loop ended, for structured
// shutdown tracing.
type StopReason string

const (
	StopRequested  StopReason = "requested"
	StopMaxResults StopReason = "max_results"
	StopMaxRuntime StopReason = "max_runtime"
	StopErrorCount StopReason = "error_count"
	StopDailyLimit StopReason = "daily_limit"
	StopFatalError StopReason = "fatal_error"
)

var (
	ErrTaskExists = errors.New("engine: task id already registered")
)

// Task is a schedulable unit of recurring collection work.
//
// LastRun/NextRun are owned by the engine once the task is registered;
// callers observe them through Snapshot().
type Task struct {
	ID       string
	Query    lead.Query
	Priority int // 1 = highest
	Enabled  bool

	// Schedule is an optional cron spec; when set it overrides the
	// engine interval for computing NextRun after a success.
	Schedule string

	Timeout time.Duration // per attempt; 0 disables the deadline
	Policy  retry.Policy

	LastRun time.Time
	NextRun time.Time

	sched cron.Schedule // parsed from Schedule at registration
}

// Summary is the opaque payload a successful execution carries back
// through the retry executor.
type Summary struct {
	NewLeads   int
	TotalFound int
}

// Config controls timing, gating and stop conditions.
//
// MaxConcurrent is accepted and reported but not enforced: the control
// loop runs tasks strictly one at a time.
type Config struct {
	Interval      time.Duration // between successful runs of one task
	MaxConcurrent int
	DailyLimit    int

	// Operating window, hours in 24h local time. StartHour > EndHour
	// means an overnight window wrapping midnight; equal bounds make an
	// empty window. Both zero defaults to 9-17.
	StartHour      int
	EndHour        int
	WeekendEnabled bool

	// Quality controls.
	MinCompleteness int
	SkipKnown       bool
	AutoAnalyze     bool

	// Stop conditions. Zero disables the bound.
	MaxTotalResults int
	MaxRuntime      time.Duration
	StopOnErrors    int

	HistorySize int

	// Loop pacing.
	TickInterval time.Duration // after each execution
	IdleWait     time.Duration // no task ready
	OffHoursWait time.Duration // outside the operating window
	PauseWait    time.Duration // while paused
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 1
	}
	if c.DailyLimit <= 0 {
		c.DailyLimit = 100
	}
	if c.StopOnErrors <= 0 {
		c.StopOnErrors = 10
	}
	if c.StartHour == 0 && c.EndHour == 0 {
		c.StartHour, c.EndHour = 9, 17
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.IdleWait <= 0 {
		c.IdleWait = time.Minute
	}
	if c.OffHoursWait <= 0 {
		c.OffHoursWait = 5 * time.Minute
	}
	if c.PauseWait <= 0 {
		c.PauseWait = time.Second
	}
	return c
}

// ProgressEvent is delivered to the OnProgress hook: per-attempt updates
// during execution and a final update on success.
type ProgressEvent struct {
	TaskID       string
	Query        lead.Query
	Attempt      int
	Message      string
	NewLeads     int
	TotalResults int
}

// ErrorEvent is delivered to the OnError hook after an exhausted-retry
// failure or a fatal loop error.
type ErrorEvent struct {
	TaskID   string
	Query    lead.Query
	Err      error
	Attempts int
}

// Hooks is the callback surface exposed to the host application.
// Callbacks run on a dedicated dispatch goroutine so a slow or panicking
// host cannot stall the control loop.
type Hooks struct {
	OnProgress   func(ProgressEvent)
	OnError      func(ErrorEvent)
	OnCompletion func(Snapshot)
}

// Clock abstracts wall time so operating-hours and daily-reset logic
// are testable without real waits.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
