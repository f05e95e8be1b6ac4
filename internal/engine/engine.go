package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	logx "leadgen/pkg/logx"

	"leadgen/internal/analyze"
	"leadgen/internal/eventbus"
	"leadgen/internal/fetch"
	"leadgen/internal/retry"
	"leadgen/internal/storage"
)

// Deps are the engine's external collaborators.
type Deps struct {
	Fetcher  fetch.Fetcher
	Store    storage.Store
	Analyzer analyze.Analyzer // optional; used when AutoAnalyze is set
	Bus      eventbus.Bus     // optional
	Hooks    Hooks
}

// Engine owns a task set and a single background control loop that
// gates, selects, executes and reschedules tasks.
//
// All mutable state is guarded by mu; the loop mutates, external
// callers read consistent snapshots.
type Engine struct {
	mu sync.Mutex

	log   logx.Logger
	cfg   Config
	deps  Deps
	exec  *retry.Executor
	clock Clock

	parser cron.Parser

	status    Status
	tasks     []*Task
	current   *Task
	startedAt time.Time
	lastErr   error

	errorCount   int
	totalResults int
	dailyRuns    int
	lastReset    time.Time // date (midnight) of the last daily counter reset

	results map[string]retry.Result

	stopCh    chan struct{}
	doneCh    chan struct{}
	runCancel context.CancelFunc

	cb *dispatcher
}

type Option func(*Engine)

// WithClock overrides the time source (tests only).
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithExecutor overrides the retry executor (tests inject a seeded one).
func WithExecutor(x *retry.Executor) Option {
	return func(e *Engine) { e.exec = x }
}

func New(cfg Config, deps Deps, log logx.Logger, opts ...Option) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		log:     log,
		cfg:     cfg.withDefaults(),
		deps:    deps,
		clock:   realClock{},
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		status:  StatusStopped,
		results: map[string]retry.Result{},
	}
	for _, o := range opts {
		o(e)
	}
	if e.exec == nil {
		e.exec = retry.NewExecutor(log)
	}
	e.cb = newDispatcher(deps.Hooks, log)
	return e
}

// AddTask validates and registers a task. A missing ID is generated,
// a zero policy gets the executor defaults. Safe while running; the
// task becomes eligible on the next selection pass.
func (e *Engine) AddTask(t Task) error {
	if t.Policy.MaxAttempts == 0 && t.Policy.Strategy == "" {
		t.Policy = retry.DefaultPolicy()
	}
	if err := t.Policy.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	if spec := strings.TrimSpace(t.Schedule); spec != "" {
		sched, err := e.parser.Parse(spec)
		if err != nil {
			return err
		}
		t.sched = sched
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.tasks {
		if existing.ID == t.ID {
			return ErrTaskExists
		}
	}
	e.tasks = append(e.tasks, &t)
	e.log.Info("task registered",
		logx.String("task", t.ID),
		logx.String("query", t.Query.String()),
		logx.Int("priority", t.Priority))
	return nil
}

// RemoveTask removes every task matching the predicate and reports
// whether anything was removed. The current task finishes its run even
// if removed.
func (e *Engine) RemoveTask(match func(Task) bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	removed := false
	for _, t := range e.tasks {
		if match(*t) {
			removed = true
			e.log.Info("task removed", logx.String("task", t.ID), logx.String("query", t.Query.String()))
			continue
		}
		e.tasks[n] = t
		n++
	}
	e.tasks = e.tasks[:n]
	return removed
}

// Start launches the control loop. It returns false (and changes
// nothing) when the worker is already live or no tasks are registered.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopCh != nil {
		e.log.Warn("start ignored; engine already running")
		return false
	}
	if len(e.tasks) == 0 {
		e.log.Error("start refused; no tasks registered")
		return false
	}

	now := e.clock.Now()
	e.status = StatusRunning
	e.startedAt = now
	e.errorCount = 0
	e.lastErr = nil
	e.lastReset = dateOf(now)

	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	runCtx, cancel := context.WithCancel(context.Background())
	e.runCancel = cancel

	go e.run(runCtx, e.stopCh, e.doneCh)

	e.publish("engine.started", nil)
	e.log.Info("engine started", logx.Int("tasks", len(e.tasks)))
	return true
}

// Stop signals the loop and waits (bounded by ctx) for it to exit.
// Idempotent.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	stopCh := e.stopCh
	doneCh := e.doneCh
	cancel := e.runCancel
	e.stopCh = nil
	e.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	if cancel != nil {
		cancel()
	}

	select {
	case <-doneCh:
	case <-ctx.Done():
		e.log.Warn("stop timed out waiting for worker; shutdown continues in background")
	}
}

// Pause asks the loop to idle. Valid only while Running.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusRunning {
		return false
	}
	e.status = StatusPaused
	e.publish("engine.paused", nil)
	e.log.Info("engine paused")
	return true
}

// Resume clears the pause signal. Valid only while Paused.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPaused {
		return false
	}
	e.status = StatusRunning
	e.publish("engine.resumed", nil)
	e.log.Info("engine resumed")
	return true
}

// Apply updates timing/window/limit settings live. Task definitions and
// collaborators are not touched.
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg.withDefaults()
	e.mu.Unlock()
	e.log.Debug("engine config applied")
}

// Close releases the callback dispatcher. Call after Stop, at daemon
// shutdown.
func (e *Engine) Close() {
	e.cb.close()
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Statistics exposes the retry executor's per-task and aggregate stats.
func (e *Engine) Statistics() retry.StatsSnapshot {
	return e.exec.Statistics()
}

func (e *Engine) config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status == StatusPaused
}

// publish never blocks and takes no engine locks, so it is safe from
// any engine code path.
func (e *Engine) publish(typ string, data any) {
	if e.deps.Bus != nil {
		e.deps.Bus.Publish(eventbus.Event{Type: typ, Time: e.clock.Now(), Data: data})
	}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
