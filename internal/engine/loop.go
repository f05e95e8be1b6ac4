package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "leadgen/pkg/logx"

	"leadgen/internal/lead"
	"leadgen/internal/retry"
)

// errorCooldownCap bounds the exponential per-error backoff applied to
// a failing task's NextRun.
const errorCooldownCap = time.Hour

// run is the control loop. Exactly one instance is live per Start; it
// owns status transitions while running and finalizes all shared state
// on exit.
func (e *Engine) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	e.log.Debug("control loop started")

	var reason StopReason = StopRequested
	for {
		select {
		case <-stopCh:
			e.finish(reason, doneCh)
			close(doneCh)
			return
		default:
		}

		r, fatal := e.step(ctx, stopCh)
		if fatal != nil {
			e.mu.Lock()
			e.status = StatusError
			e.lastErr = fatal
			e.errorCount++
			e.mu.Unlock()
			e.log.Error("fatal loop error", logx.Err(fatal))
			e.cb.onError(ErrorEvent{Err: fatal})
			e.finish(StopFatalError, doneCh)
			close(doneCh)
			return
		}
		if r != "" {
			e.finish(r, doneCh)
			close(doneCh)
			return
		}
	}
}

// step performs one loop iteration: gate, select, execute, pace. It
// returns a non-empty StopReason when a stop condition has tripped, or
// a fatal error when the iteration panicked.
func (e *Engine) step(ctx context.Context, stopCh <-chan struct{}) (reason StopReason, fatal error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic in control loop",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
			fatal = fmt.Errorf("control loop panic: %v", r)
		}
	}()

	cfg := e.config()
	now := e.clock.Now()

	// A paused engine only idles; counters and stop bounds are not
	// evaluated until resume, so a global bound elapsing during a pause
	// cannot stop the loop.
	if e.isPaused() {
		wait(stopCh, cfg.PauseWait)
		return "", nil
	}

	e.resetDailyIfNeeded(now)

	if r := e.stopCondition(cfg, now); r != "" {
		return r, nil
	}

	if !inOperatingWindow(cfg, now) {
		e.log.Debug("outside operating window",
			logx.Int("hour", now.Hour()),
			logx.String("weekday", now.Weekday().String()))
		wait(stopCh, cfg.OffHoursWait)
		return "", nil
	}

	task := e.nextTask(now)
	if task == nil {
		wait(stopCh, cfg.IdleWait)
		return "", nil
	}

	e.executeTask(ctx, cfg, task)
	wait(stopCh, cfg.TickInterval)
	return "", nil
}

// finish transitions to Stopped, notifies, and re-arms the engine for a
// future Start. A worker that outlived a timed-out Stop reports its
// exit against the done channel it owns; after a restart that channel
// no longer matches, and the stale worker must not touch the new run.
func (e *Engine) finish(reason StopReason, doneCh chan struct{}) {
	e.mu.Lock()
	if e.doneCh != doneCh {
		e.mu.Unlock()
		e.log.Debug("stale worker exit ignored", logx.String("reason", string(reason)))
		return
	}
	// Error is a transient state; every exit path lands in Stopped, with
	// lastErr preserving what went wrong.
	e.status = StatusStopped
	e.current = nil
	e.stopCh = nil
	e.doneCh = nil
	if e.runCancel != nil {
		e.runCancel()
		e.runCancel = nil
	}
	e.mu.Unlock()

	e.publish("engine.stopped", string(reason))
	e.log.Info("engine stopped", logx.String("reason", string(reason)))
	e.cb.onCompletion(e.Snapshot())
}

// resetDailyIfNeeded zeroes the daily run counter once per calendar
// day, in the engine clock's location.
func (e *Engine) resetDailyIfNeeded(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	today := dateOf(now)
	if today.After(e.lastReset) {
		if e.dailyRuns > 0 {
			e.log.Info("daily counters reset", logx.Int("runs", e.dailyRuns))
		}
		e.dailyRuns = 0
		e.lastReset = today
	}
}

// stopCondition reports the first tripped stop bound, if any. Bounds
// are inclusive: reaching a limit stops the loop.
func (e *Engine) stopCondition(cfg Config, now time.Time) StopReason {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cfg.MaxTotalResults > 0 && e.totalResults >= cfg.MaxTotalResults {
		return StopMaxResults
	}
	if cfg.MaxRuntime > 0 && now.Sub(e.startedAt) >= cfg.MaxRuntime {
		return StopMaxRuntime
	}
	if cfg.StopOnErrors > 0 && e.errorCount >= cfg.StopOnErrors {
		return StopErrorCount
	}
	if cfg.DailyLimit > 0 && e.dailyRuns >= cfg.DailyLimit {
		return StopDailyLimit
	}
	return ""
}

// inOperatingWindow reports whether now falls inside the configured
// hours. StartHour > EndHour wraps midnight; equal bounds make an
// empty window.
func inOperatingWindow(cfg Config, now time.Time) bool {
	if !cfg.WeekendEnabled {
		if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	if cfg.StartHour == cfg.EndHour {
		return false
	}
	h := now.Hour()
	if cfg.StartHour < cfg.EndHour {
		return h >= cfg.StartHour && h < cfg.EndHour
	}
	return h >= cfg.StartHour || h < cfg.EndHour
}

// nextTask picks the due task with the best (priority, staleness)
// rank: lowest priority number first, then the least recently run,
// never-run tasks ranking oldest.
func (e *Engine) nextTask(now time.Time) *Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	var best *Task
	for _, t := range e.tasks {
		if !t.Enabled {
			continue
		}
		if !t.NextRun.IsZero() && t.NextRun.After(now) {
			continue
		}
		if best == nil {
			best = t
			continue
		}
		if t.Priority < best.Priority {
			best = t
			continue
		}
		if t.Priority == best.Priority && t.LastRun.Before(best.LastRun) {
			best = t
		}
	}
	return best
}

// executeTask runs one task through the retry executor, persists the
// outcome and reschedules.
func (e *Engine) executeTask(ctx context.Context, cfg Config, task *Task) {
	now := e.clock.Now()

	e.mu.Lock()
	e.current = task
	task.LastRun = now
	e.mu.Unlock()

	e.publish("task.started", task.ID)
	e.log.Info("task execution started",
		logx.String("task", task.ID),
		logx.String("query", task.Query.String()))

	onAttempt := func(attempt int, message string) {
		e.cb.onProgress(ProgressEvent{
			TaskID:  task.ID,
			Query:   task.Query,
			Attempt: attempt,
			Message: message,
		})
	}

	res := e.exec.Execute(ctx, retry.Request{
		TaskID:  task.ID,
		Policy:  task.Policy,
		Timeout: task.Timeout,
	}, e.buildOperation(cfg, task), onAttempt)

	e.recordResult(res)

	switch res.Status {
	case retry.StatusSuccess:
		summary, _ := res.Value.(Summary)
		e.mu.Lock()
		e.totalResults += summary.NewLeads
		e.dailyRuns++
		total := e.totalResults
		e.mu.Unlock()

		e.rescheduleAfterSuccess(task)
		e.publish("task.completed", task.ID)
		e.log.Info("task execution completed",
			logx.String("task", task.ID),
			logx.Int("attempts", res.Attempts),
			logx.Int("new_leads", summary.NewLeads),
			logx.Int("total_found", summary.TotalFound))
		e.cb.onProgress(ProgressEvent{
			TaskID:       task.ID,
			Query:        task.Query,
			Attempt:      res.Attempts,
			Message:      "completed",
			NewLeads:     summary.NewLeads,
			TotalResults: total,
		})

	case retry.StatusFailed, retry.StatusTimeout:
		e.mu.Lock()
		e.errorCount++
		e.lastErr = res.Err
		count := e.errorCount
		e.mu.Unlock()

		e.rescheduleAfterFailure(task, count)
		e.publish("task.failed", task.ID)
		e.log.Warn("task execution failed",
			logx.String("task", task.ID),
			logx.Int("attempts", res.Attempts),
			logx.Int("error_count", count),
			logx.Err(res.Err))
		e.cb.onError(ErrorEvent{
			TaskID:   task.ID,
			Query:    task.Query,
			Err:      res.Err,
			Attempts: res.Attempts,
		})

	case retry.StatusCancelled:
		e.log.Debug("task execution cancelled", logx.String("task", task.ID))
	}

	e.mu.Lock()
	e.current = nil
	e.mu.Unlock()
}

// buildOperation closes over one task and returns the retried unit of
// work: fetch, filter, dedup, persist, optionally analyze.
func (e *Engine) buildOperation(cfg Config, task *Task) retry.Operation {
	return func(ctx context.Context) (any, error) {
		leads, err := e.deps.Fetcher.Fetch(ctx, task.Query)
		if err != nil {
			return nil, err
		}

		summary := Summary{TotalFound: len(leads)}
		for i := range leads {
			l := leads[i]
			if !lead.PassesQuality(l, cfg.MinCompleteness) {
				continue
			}
			if cfg.SkipKnown {
				known, err := e.deps.Store.Exists(ctx, l.IdentityKey())
				if err != nil {
					return nil, err
				}
				if known {
					continue
				}
			}
			id, err := e.deps.Store.Put(ctx, l)
			if err != nil {
				return nil, err
			}
			summary.NewLeads++

			if cfg.AutoAnalyze && e.deps.Analyzer != nil && l.Website != "" {
				// Analysis is best effort; a probe failure never
				// fails the collection run.
				a := e.deps.Analyzer.Analyze(ctx, l)
				if err := e.deps.Store.AttachAnalysis(ctx, id, a); err != nil {
					e.log.Warn("analysis attach failed",
						logx.String("lead", id),
						logx.Err(err))
				}
			}
		}
		return summary, nil
	}
}

func (e *Engine) rescheduleAfterSuccess(task *Task) {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if task.sched != nil {
		task.NextRun = task.sched.Next(now)
		return
	}
	task.NextRun = now.Add(e.cfg.Interval)
}

// rescheduleAfterFailure pushes the task out by an exponential
// cooldown keyed on the engine's consecutive error count, capped at
// one hour.
func (e *Engine) rescheduleAfterFailure(task *Task, errorCount int) {
	exp := errorCount
	if exp > 5 {
		exp = 5
	}
	cooldown := time.Duration(60<<exp) * time.Second
	if cooldown > errorCooldownCap {
		cooldown = errorCooldownCap
	}

	now := e.clock.Now()
	e.mu.Lock()
	task.NextRun = now.Add(cooldown)
	e.mu.Unlock()
	e.log.Debug("task cooled down",
		logx.String("task", task.ID),
		logx.Duration("cooldown", cooldown))
}

func (e *Engine) recordResult(res retry.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[res.TaskID] = res
	if len(e.results) > e.cfg.HistorySize {
		// Evict the oldest completed entry to keep the map bounded.
		var oldestID string
		var oldest time.Time
		for id, r := range e.results {
			if oldestID == "" || r.CompletedAt.Before(oldest) {
				oldestID, oldest = id, r.CompletedAt
			}
		}
		delete(e.results, oldestID)
	}
}

// wait blocks for d or until stopCh closes; it reports whether the full
// interval elapsed.
func wait(stopCh <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-stopCh:
			return false
		default:
			return true
		}
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-stopCh:
		return false
	case <-tmr.C:
		return true
	}
}
