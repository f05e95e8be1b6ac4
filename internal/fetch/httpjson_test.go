package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "leadgen/pkg/logx"

	"leadgen/internal/lead"
)

func TestHTTPSourceFetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("location"); got != "London" {
			t.Errorf("location = %q, want London", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		_ = json.NewEncoder(w).Encode([]lead.Lead{
			{Name: "Acme", Address: "1 High St", Completeness: 80},
			{Name: "Beta", Address: "2 Low St", Completeness: 40},
		})
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPConfig{URL: srv.URL}, logx.Nop())
	leads, err := s.Fetch(context.Background(), lead.Query{Location: "London", Limit: 5})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("got %d leads, want 2", len(leads))
	}
}

func TestHTTPSourceServerErrorIsTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "try later", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPConfig{URL: srv.URL}, logx.Nop())
	_, err := s.Fetch(context.Background(), lead.Query{Location: "London"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Fatalf("error %v should be transient", err)
	}
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("error %v should be *Error", err)
	}
}

func TestRateLimitedPaces(t *testing.T) {
	t.Parallel()
	calls := 0
	inner := Func(func(ctx context.Context, q lead.Query) ([]lead.Lead, error) {
		calls++
		return nil, nil
	})

	// 60/min = 1/sec with burst 1: the second call must wait ~1s.
	f := RateLimited(inner, 60)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := f.Fetch(ctx, lead.Query{}); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := f.Fetch(ctx, lead.Query{}); err == nil {
		t.Fatal("second fetch should hit the limiter before the deadline")
	}
	if calls != 1 {
		t.Fatalf("inner called %d times, want 1", calls)
	}
}

func TestRateLimitedDisabled(t *testing.T) {
	t.Parallel()
	inner := Func(func(ctx context.Context, q lead.Query) ([]lead.Lead, error) { return nil, nil })
	if got := RateLimited(inner, 0); got == nil {
		t.Fatal("nil fetcher")
	}
}
