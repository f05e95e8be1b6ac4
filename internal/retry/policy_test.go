package retry

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestDelaySequences(t *testing.T) {
	t.Parallel()
	sec := func(n int64) time.Duration { return time.Duration(n) * time.Second }

	tests := []struct {
		name   string
		policy Policy
		want   []time.Duration
	}{
		{
			name:   "fixed",
			policy: Policy{MaxAttempts: 4, Strategy: StrategyFixed, BaseDelay: sec(2), MaxDelay: time.Minute},
			want:   []time.Duration{sec(2), sec(2), sec(2), sec(2)},
		},
		{
			name:   "linear",
			policy: Policy{MaxAttempts: 4, Strategy: StrategyLinear, BaseDelay: sec(1), MaxDelay: time.Minute},
			want:   []time.Duration{sec(1), sec(2), sec(3), sec(4)},
		},
		{
			name:   "exponential factor 2",
			policy: Policy{MaxAttempts: 4, Strategy: StrategyExponential, BaseDelay: sec(1), BackoffFactor: 2, MaxDelay: time.Minute},
			want:   []time.Duration{sec(1), sec(2), sec(4), sec(8)},
		},
		{
			name:   "fibonacci",
			policy: Policy{MaxAttempts: 6, Strategy: StrategyFibonacci, BaseDelay: sec(1), MaxDelay: time.Minute},
			want:   []time.Duration{sec(1), sec(1), sec(2), sec(3), sec(5), sec(8)},
		},
		{
			name: "custom clamps to last entry",
			policy: Policy{
				MaxAttempts:  5,
				Strategy:     StrategyCustom,
				CustomDelays: []time.Duration{sec(1), sec(5)},
				MaxDelay:     time.Minute,
			},
			want: []time.Duration{sec(1), sec(5), sec(5), sec(5), sec(5)},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.want {
				got := tt.policy.Delay(i+1, nil)
				if got != want {
					t.Fatalf("Delay(%d) = %v, want %v", i+1, got, want)
				}
			}
		})
	}
}

func TestDelayMonotonicAndClamped(t *testing.T) {
	t.Parallel()
	maxDelay := 10 * time.Second
	for _, strat := range []Strategy{StrategyFixed, StrategyLinear, StrategyExponential, StrategyFibonacci} {
		p := Policy{MaxAttempts: 12, Strategy: strat, BaseDelay: time.Second, BackoffFactor: 2, MaxDelay: maxDelay}
		prev := time.Duration(-1)
		for attempt := 1; attempt <= 12; attempt++ {
			d := p.Delay(attempt, nil)
			if d < prev {
				t.Fatalf("%s: Delay(%d) = %v decreased from %v", strat, attempt, d, prev)
			}
			if d > maxDelay {
				t.Fatalf("%s: Delay(%d) = %v exceeds max %v", strat, attempt, d, maxDelay)
			}
			prev = d
		}
	}
}

func TestDelayJitterBounds(t *testing.T) {
	t.Parallel()
	p := Policy{
		MaxAttempts: 3,
		Strategy:    StrategyFixed,
		BaseDelay:   10 * time.Second,
		MaxDelay:    time.Minute,
		Jitter:      true,
		JitterRange: 0.1,
	}
	rng := rand.New(rand.NewSource(42))
	lo := 9 * time.Second
	hi := 11 * time.Second
	for i := 0; i < 1000; i++ {
		d := p.Delay(1, rng)
		if d < lo || d > hi {
			t.Fatalf("jittered delay %v outside [%v, %v]", d, lo, hi)
		}
	}
}

func TestDelayJitterDeterministicWithSeed(t *testing.T) {
	t.Parallel()
	p := Policy{MaxAttempts: 3, Strategy: StrategyFixed, BaseDelay: time.Second, MaxDelay: time.Minute, Jitter: true, JitterRange: 0.5}
	a := p.Delay(1, rand.New(rand.NewSource(7)))
	b := p.Delay(1, rand.New(rand.NewSource(7)))
	if a != b {
		t.Fatalf("same seed produced %v and %v", a, b)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}

	bad := Policy{MaxAttempts: 0, Strategy: StrategyFixed}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero max attempts")
	}

	custom := Policy{MaxAttempts: 3, Strategy: StrategyCustom}
	if err := custom.Validate(); !errors.Is(err, ErrNoCustomDelays) {
		t.Fatalf("err = %v, want ErrNoCustomDelays", err)
	}

	unknown := Policy{MaxAttempts: 3, Strategy: Strategy("bogus")}
	if err := unknown.Validate(); err == nil {
		t.Fatal("expected error for unknown strategy")
	}

	badJitter := Policy{MaxAttempts: 3, Strategy: StrategyFixed, JitterRange: 1.5}
	if err := badJitter.Validate(); err == nil {
		t.Fatal("expected error for jitter range > 1")
	}
}
