package retry

import "time"

// TaskStats accumulates outcomes for one task across executions.
type TaskStats struct {
	Executions    int
	Attempts      int
	Successes     int
	Failures      int
	AvgAttempts   float64
	LastExecution time.Time
}

// AggregateStats summarizes all tasks the executor has seen.
type AggregateStats struct {
	Executions  int
	Attempts    int
	Successes   int
	Failures    int
	SuccessRate float64 // 0..1; 1 when nothing has run yet
	AvgAttempts float64
}

// StatsSnapshot is a point-in-time copy safe to hand to callers.
type StatsSnapshot struct {
	PerTask   map[string]TaskStats
	Aggregate AggregateStats
}

func (e *Executor) record(taskID string, attempts int, success bool) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	st := e.stats[taskID]
	if st == nil {
		st = &TaskStats{}
		e.stats[taskID] = st
	}
	st.Executions++
	st.Attempts += attempts
	if success {
		st.Successes++
	} else {
		st.Failures++
	}
	st.AvgAttempts = float64(st.Attempts) / float64(st.Executions)
	st.LastExecution = e.now()
}

// Statistics returns a copy of per-task and aggregate retry statistics.
func (e *Executor) Statistics() StatsSnapshot {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	snap := StatsSnapshot{PerTask: make(map[string]TaskStats, len(e.stats))}
	agg := &snap.Aggregate
	for id, st := range e.stats {
		snap.PerTask[id] = *st
		agg.Executions += st.Executions
		agg.Attempts += st.Attempts
		agg.Successes += st.Successes
		agg.Failures += st.Failures
	}
	if agg.Executions > 0 {
		agg.SuccessRate = float64(agg.Successes) / float64(agg.Executions)
		agg.AvgAttempts = float64(agg.Attempts) / float64(agg.Executions)
	} else {
		agg.SuccessRate = 1
	}
	return snap
}
