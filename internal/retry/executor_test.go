package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	logx "leadgen/pkg/logx"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{MaxAttempts: maxAttempts, Strategy: StrategyFixed, BaseDelay: 0, MaxDelay: time.Second}
}

func TestExecuteAlwaysFailing(t *testing.T) {
	t.Parallel()
	e := NewExecutor(logx.Nop())
	boom := errors.New("boom")

	res := e.Execute(context.Background(), Request{TaskID: "t1", Policy: fastPolicy(3)},
		func(ctx context.Context) (any, error) { return nil, boom }, nil)

	if res.Status != StatusFailed {
		t.Fatalf("Status = %s, want %s", res.Status, StatusFailed)
	}
	if res.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", res.Attempts)
	}
	if !errors.Is(res.Err, boom) {
		t.Fatalf("Err = %v, want boom", res.Err)
	}
	if res.CompletedAt.IsZero() {
		t.Fatal("CompletedAt not set")
	}
}

func TestExecuteEventualSuccess(t *testing.T) {
	t.Parallel()
	e := NewExecutor(logx.Nop())

	calls := 0
	res := e.Execute(context.Background(), Request{TaskID: "t1", Policy: fastPolicy(3)},
		func(ctx context.Context) (any, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("transient")
			}
			return "payload", nil
		}, nil)

	if res.Status != StatusSuccess {
		t.Fatalf("Status = %s, want %s", res.Status, StatusSuccess)
	}
	if res.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", res.Attempts)
	}
	if res.Value != "payload" {
		t.Fatalf("Value = %v, want payload", res.Value)
	}
	if res.Err != nil {
		t.Fatalf("Err = %v, want nil", res.Err)
	}
}

func TestExecuteInvokesOnAttempt(t *testing.T) {
	t.Parallel()
	e := NewExecutor(logx.Nop())

	var msgs []string
	res := e.Execute(context.Background(), Request{TaskID: "t1", Policy: fastPolicy(2)},
		func(ctx context.Context) (any, error) { return nil, errors.New("nope") },
		func(attempt int, message string) { msgs = append(msgs, message) })

	if res.Status != StatusFailed {
		t.Fatalf("Status = %s, want %s", res.Status, StatusFailed)
	}
	// attempt 1, retry notice, attempt 2
	if len(msgs) != 3 {
		t.Fatalf("onAttempt called %d times, want 3 (%v)", len(msgs), msgs)
	}
	if !strings.Contains(msgs[1], "retrying") {
		t.Fatalf("second message %q should announce the retry", msgs[1])
	}
}

func TestExecuteNonRetryableError(t *testing.T) {
	t.Parallel()
	fatal := errors.New("fatal")
	e := NewExecutor(logx.Nop(), WithRetryable(func(err error) bool { return !errors.Is(err, fatal) }))

	res := e.Execute(context.Background(), Request{TaskID: "t1", Policy: fastPolicy(5)},
		func(ctx context.Context) (any, error) { return nil, fatal }, nil)

	if res.Status != StatusFailed {
		t.Fatalf("Status = %s, want %s", res.Status, StatusFailed)
	}
	if res.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1 (error is not retryable)", res.Attempts)
	}
}

func TestExecuteCancelledDuringBackoff(t *testing.T) {
	t.Parallel()
	e := NewExecutor(logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	policy := Policy{MaxAttempts: 3, Strategy: StrategyFixed, BaseDelay: 10 * time.Second, MaxDelay: time.Minute}
	done := make(chan Result, 1)
	go func() {
		done <- e.Execute(ctx, Request{TaskID: "t1", Policy: policy},
			func(ctx context.Context) (any, error) { return nil, errors.New("transient") }, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		if res.Status != StatusCancelled {
			t.Fatalf("Status = %s, want %s", res.Status, StatusCancelled)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not interrupt the backoff wait")
	}
}

func TestExecuteTimeoutStatus(t *testing.T) {
	t.Parallel()
	e := NewExecutor(logx.Nop())

	res := e.Execute(context.Background(),
		Request{TaskID: "t1", Policy: fastPolicy(1), Timeout: 20 * time.Millisecond},
		func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, nil)

	if res.Status != StatusTimeout {
		t.Fatalf("Status = %s, want %s", res.Status, StatusTimeout)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	t.Parallel()
	e := NewExecutor(logx.Nop())

	res := e.Execute(context.Background(), Request{TaskID: "t1", Policy: fastPolicy(2)},
		func(ctx context.Context) (any, error) { panic("kaboom") }, nil)

	if res.Status != StatusFailed {
		t.Fatalf("Status = %s, want %s", res.Status, StatusFailed)
	}
	if res.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2 (panics are retried like errors)", res.Attempts)
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()
	e := NewExecutor(logx.Nop())

	// one success on the second attempt, one exhausted failure
	calls := 0
	e.Execute(context.Background(), Request{TaskID: "a", Policy: fastPolicy(3)},
		func(ctx context.Context) (any, error) {
			calls++
			if calls < 2 {
				return nil, errors.New("transient")
			}
			return nil, nil
		}, nil)
	e.Execute(context.Background(), Request{TaskID: "b", Policy: fastPolicy(2)},
		func(ctx context.Context) (any, error) { return nil, errors.New("always") }, nil)

	snap := e.Statistics()
	a := snap.PerTask["a"]
	if a.Executions != 1 || a.Successes != 1 || a.Attempts != 2 {
		t.Fatalf("task a stats = %+v", a)
	}
	b := snap.PerTask["b"]
	if b.Executions != 1 || b.Failures != 1 || b.Attempts != 2 {
		t.Fatalf("task b stats = %+v", b)
	}
	if snap.Aggregate.Executions != 2 || snap.Aggregate.Attempts != 4 {
		t.Fatalf("aggregate = %+v", snap.Aggregate)
	}
	if snap.Aggregate.SuccessRate != 0.5 {
		t.Fatalf("SuccessRate = %g, want 0.5", snap.Aggregate.SuccessRate)
	}
	if snap.Aggregate.AvgAttempts != 2 {
		t.Fatalf("AvgAttempts = %g, want 2", snap.Aggregate.AvgAttempts)
	}
}
