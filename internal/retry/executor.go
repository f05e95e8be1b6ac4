package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	logx "leadgen/pkg/logx"
)

// Status is the lifecycle state of one task execution (all attempts
// included).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
	StatusCancelled Status = "cancelled"
	StatusTimeout   Status = "timeout"
)

// Operation is the unit of work being retried. The returned value is
// opaque to the executor.
type Operation func(ctx context.Context) (any, error)

// AttemptFunc is an optional per-attempt progress callback.
type AttemptFunc func(attempt int, message string)

// Request describes one execution: identity, policy and the optional
// per-attempt timeout.
type Request struct {
	TaskID  string
	Policy  Policy
	Timeout time.Duration // per attempt; 0 disables the deadline
}

// Result is the finalized outcome of one execution. No error ever
// escapes Execute; everything is encoded here.
type Result struct {
	TaskID        string
	Status        Status
	Value         any
	Err           error
	Attempts      int
	TotalDuration time.Duration
	StartedAt     time.Time
	CompletedAt   time.Time
}

// Executor runs operations under a retry policy and keeps per-task
// statistics. Safe for concurrent use.
type Executor struct {
	log logx.Logger
	now func() time.Time

	// retryable is the error allow-list; nil means every error is
	// eligible for a retry.
	retryable func(error) bool

	rngMu sync.Mutex
	rng   *rand.Rand

	statsMu sync.Mutex
	stats   map[string]*TaskStats
}

type Option func(*Executor)

// WithRand injects the jitter random source (seed it in tests).
func WithRand(src rand.Source) Option {
	return func(e *Executor) { e.rng = rand.New(src) }
}

// WithRetryable restricts which errors are retried.
func WithRetryable(fn func(error) bool) Option {
	return func(e *Executor) { e.retryable = fn }
}

// WithClock overrides the time source (tests only).
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func NewExecutor(log logx.Logger, opts ...Option) *Executor {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Executor{
		log:   log,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		stats: map[string]*TaskStats{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs op under the request's retry policy and returns the
// finalized Result. It blocks through backoff waits; a cancelled ctx
// interrupts the wait and finalizes the result as cancelled.
func (e *Executor) Execute(ctx context.Context, req Request, op Operation, onAttempt AttemptFunc) Result {
	res := Result{TaskID: req.TaskID, Status: StatusPending, StartedAt: e.now()}

	maxAttempts := req.Policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Status = StatusRunning
		res.Attempts = attempt
		if onAttempt != nil {
			onAttempt(attempt, fmt.Sprintf("attempt %d/%d", attempt, maxAttempts))
		}

		value, err := e.runAttempt(ctx, req.Timeout, op)
		if err == nil {
			res.Status = StatusSuccess
			res.Value = value
			e.finalize(&res)
			e.record(req.TaskID, attempt, true)
			return res
		}

		if ctx.Err() != nil {
			res.Status = StatusCancelled
			res.Err = ctx.Err()
			e.finalize(&res)
			return res
		}

		eligible := attempt < maxAttempts && (e.retryable == nil || e.retryable(err))
		if !eligible {
			res.Err = err
			if errors.Is(err, context.DeadlineExceeded) {
				res.Status = StatusTimeout
			} else {
				res.Status = StatusFailed
			}
			e.finalize(&res)
			e.record(req.TaskID, attempt, false)
			return res
		}

		res.Status = StatusRetrying
		delay := e.delay(req.Policy, attempt)
		if onAttempt != nil {
			onAttempt(attempt, fmt.Sprintf("retrying in %s: %v", delay, err))
		}
		e.log.Debug("attempt failed; retrying",
			logx.String("task", req.TaskID),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err))

		if !sleepCtx(ctx, delay) {
			res.Status = StatusCancelled
			res.Err = ctx.Err()
			e.finalize(&res)
			return res
		}
	}

	// Unreachable: the loop always returns from its final attempt.
	res.Status = StatusFailed
	e.finalize(&res)
	return res
}

// runAttempt applies the per-attempt deadline and converts panics from
// the operation into ordinary errors so they stay contained.
func (e *Executor) runAttempt(ctx context.Context, timeout time.Duration, op Operation) (value any, err error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic in task operation",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("operation panic: %v", r)
		}
	}()

	value, err = op(runCtx)
	if err == nil && runCtx.Err() != nil {
		err = runCtx.Err()
	}
	return value, err
}

func (e *Executor) delay(p Policy, attempt int) time.Duration {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return p.Delay(attempt, e.rng)
}

func (e *Executor) finalize(res *Result) {
	res.CompletedAt = e.now()
	res.TotalDuration = res.CompletedAt.Sub(res.StartedAt)
}

// sleepCtx waits for d or until ctx is done; it reports whether the full
// delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-tmr.C:
		return true
	}
}
