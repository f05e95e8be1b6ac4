package fetch

import (
	"context"
	"errors"
	"fmt"

	"leadgen/internal/lead"
)

// Fetcher is the narrow contract the engine retries against. Internals
// (scraping, APIs, files) are the adapter's business.
type Fetcher interface {
	Fetch(ctx context.Context, q lead.Query) ([]lead.Lead, error)
}

// Func adapts a plain function to Fetcher.
type Func func(ctx context.Context, q lead.Query) ([]lead.Lead, error)

func (f Func) Fetch(ctx context.Context, q lead.Query) ([]lead.Lead, error) {
	return f(ctx, q)
}

// Error marks a transient fetch failure, the kind worth retrying.
type Error struct {
	Query lead.Query
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Query, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a fetch error.
func IsTransient(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}
