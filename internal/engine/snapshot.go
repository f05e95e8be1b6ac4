package engine

import (
	"time"

	"leadgen/internal/lead"
	"leadgen/internal/retry"
)

// TaskSnapshot is the externally visible view of one registered task.
type TaskSnapshot struct {
	ID       string        `json:"id"`
	Query    lead.Query    `json:"query"`
	Priority int           `json:"priority"`
	Enabled  bool          `json:"enabled"`
	Schedule string        `json:"schedule,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
	LastRun  time.Time     `json:"last_run,omitzero"`
	NextRun  time.Time     `json:"next_run,omitzero"`
}

// Snapshot is a point-in-time copy of the engine state for status
// reporting. All fields are value copies; it stays valid after the
// engine moves on.
type Snapshot struct {
	Status       Status        `json:"status"`
	StartedAt    time.Time     `json:"started_at,omitzero"`
	Runtime      time.Duration `json:"runtime"`
	CurrentID    string        `json:"current_task_id,omitempty"`
	CurrentQuery string        `json:"current_query,omitempty"`

	ErrorCount   int    `json:"error_count"`
	TotalResults int    `json:"total_results"`
	DailyRuns    int    `json:"daily_runs"`
	LastError    string `json:"last_error,omitempty"`

	TasksTotal   int       `json:"tasks_total"`
	TasksEnabled int       `json:"tasks_enabled"`
	NextRun      time.Time `json:"next_run,omitzero"`

	Tasks   []TaskSnapshot          `json:"tasks"`
	Results map[string]retry.Result `json:"results,omitempty"`
	Retry   retry.StatsSnapshot     `json:"retry"`
}

// Snapshot captures the current engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()

	s := Snapshot{
		Status:       e.status,
		StartedAt:    e.startedAt,
		ErrorCount:   e.errorCount,
		TotalResults: e.totalResults,
		DailyRuns:    e.dailyRuns,
		TasksTotal:   len(e.tasks),
		Tasks:        make([]TaskSnapshot, 0, len(e.tasks)),
		Results:      make(map[string]retry.Result, len(e.results)),
	}
	if !e.startedAt.IsZero() && e.status != StatusStopped {
		s.Runtime = e.clock.Now().Sub(e.startedAt)
	}
	if e.current != nil {
		s.CurrentID = e.current.ID
		s.CurrentQuery = e.current.Query.String()
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	for _, t := range e.tasks {
		s.Tasks = append(s.Tasks, TaskSnapshot{
			ID:       t.ID,
			Query:    t.Query,
			Priority: t.Priority,
			Enabled:  t.Enabled,
			Schedule: t.Schedule,
			Timeout:  t.Timeout,
			LastRun:  t.LastRun,
			NextRun:  t.NextRun,
		})
		if t.Enabled {
			s.TasksEnabled++
			if !t.NextRun.IsZero() && (s.NextRun.IsZero() || t.NextRun.Before(s.NextRun)) {
				s.NextRun = t.NextRun
			}
		}
	}
	for id, r := range e.results {
		s.Results[id] = r
	}
	e.mu.Unlock()

	s.Retry = e.exec.Statistics()
	return s
}
