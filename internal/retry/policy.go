package retry

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Strategy selects how the backoff delay grows between attempts.
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyLinear      Strategy = "linear"
	StrategyExponential Strategy = "exponential"
	StrategyFibonacci   Strategy = "fibonacci"
	StrategyCustom      Strategy = "custom"
)

var ErrNoCustomDelays = errors.New("retry: custom strategy requires at least one delay")

// Policy is the immutable retry configuration for a task.
//
// Delay outputs are clamped to [0, MaxDelay]; with Jitter enabled a
// uniform offset in [-delay*JitterRange, +delay*JitterRange] is added
// after the clamp, then the result is floored at zero.
type Policy struct {
	MaxAttempts   int
	Strategy      Strategy
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64 // exponential only; <= 0 means 2
	Jitter        bool
	JitterRange   float64 // fraction of the delay, 0..1
	CustomDelays  []time.Duration
}

// DefaultPolicy mirrors the executor defaults: three attempts with
// exponential backoff from 500ms capped at 15s, 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		Strategy:      StrategyExponential,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      15 * time.Second,
		BackoffFactor: 2,
		Jitter:        true,
		JitterRange:   0.2,
	}
}

// Validate fails fast on configuration errors so they surface at
// construction time, not during execution.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	switch p.Strategy {
	case StrategyFixed, StrategyLinear, StrategyExponential, StrategyFibonacci:
	case StrategyCustom:
		if len(p.CustomDelays) == 0 {
			return ErrNoCustomDelays
		}
	default:
		return fmt.Errorf("retry: unknown strategy %q", p.Strategy)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("retry: base delay must be >= 0")
	}
	if p.MaxDelay < 0 {
		return fmt.Errorf("retry: max delay must be >= 0")
	}
	if p.JitterRange < 0 || p.JitterRange > 1 {
		return fmt.Errorf("retry: jitter range must be in [0,1], got %g", p.JitterRange)
	}
	return nil
}

// Delay computes the backoff before retry `attempt` (1-based).
//
// rng is only consulted when Jitter is set; passing a seeded source makes
// the output deterministic for tests. A nil rng disables jitter.
func (p Policy) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d time.Duration
	switch p.Strategy {
	case StrategyLinear:
		d = p.BaseDelay * time.Duration(attempt)
	case StrategyExponential:
		f := p.BackoffFactor
		if f <= 0 {
			f = 2
		}
		d = time.Duration(float64(p.BaseDelay) * math.Pow(f, float64(attempt-1)))
	case StrategyFibonacci:
		d = time.Duration(int64(p.BaseDelay) * fib(attempt))
	case StrategyCustom:
		if len(p.CustomDelays) == 0 {
			return 0
		}
		i := attempt - 1
		if i >= len(p.CustomDelays) {
			i = len(p.CustomDelays) - 1
		}
		d = p.CustomDelays[i]
	default:
		d = p.BaseDelay
	}

	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter && p.JitterRange > 0 && rng != nil {
		off := (rng.Float64()*2 - 1) * p.JitterRange
		d = time.Duration(float64(d) * (1 + off))
	}
	if d < 0 {
		d = 0
	}
	return d
}

// fib(1)=1, fib(2)=1, fib(n)=fib(n-1)+fib(n-2)
func fib(n int) int64 {
	a, b := int64(1), int64(1)
	for i := 2; i < n; i++ {
		a, b = b, a+b
	}
	if n <= 2 {
		return 1
	}
	return b
}
