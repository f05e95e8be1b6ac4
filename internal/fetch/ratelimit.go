package fetch

import (
	"context"

	"golang.org/x/time/rate"

	"leadgen/internal/lead"
)

// rateLimited paces calls to the wrapped fetcher so an aggressive engine
// configuration cannot hammer the upstream source.
type rateLimited struct {
	inner   Fetcher
	limiter *rate.Limiter
}

// RateLimited wraps f with a token-bucket limiter of perMinute requests.
// perMinute <= 0 returns f unchanged.
func RateLimited(f Fetcher, perMinute int) Fetcher {
	if perMinute <= 0 {
		return f
	}
	return &rateLimited{
		inner:   f,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
	}
}

func (r *rateLimited) Fetch(ctx context.Context, q lead.Query) ([]lead.Lead, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Fetch(ctx, q)
}
