package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	logx "leadgen/pkg/logx"

	"leadgen/internal/lead"
)

// HTTPConfig configures the JSON source adapter.
type HTTPConfig struct {
	URL     string
	APIKey  string        // optional bearer token
	Timeout time.Duration // per request; 0 means 15s
}

// HTTPSource fetches leads from an HTTP endpoint returning a JSON array.
// Query parameters are passed as location/category/limit. Non-2xx and
// transport failures surface as *Error so the executor retries them.
type HTTPSource struct {
	cfg    HTTPConfig
	client *http.Client
	log    logx.Logger
}

func NewHTTPSource(cfg HTTPConfig, log logx.Logger) *HTTPSource {
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSource{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, q lead.Query) ([]lead.Lead, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("source url: %w", err)
	}
	vals := u.Query()
	vals.Set("location", q.Location)
	if q.Category != "" {
		vals.Set("category", q.Category)
	}
	if q.Limit > 0 {
		vals.Set("limit", strconv.Itoa(q.Limit))
	}
	u.RawQuery = vals.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &Error{Query: q, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Query: q, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var leads []lead.Lead
	if err := json.NewDecoder(resp.Body).Decode(&leads); err != nil {
		return nil, &Error{Query: q, Err: fmt.Errorf("decode: %w", err)}
	}

	s.log.Debug("source fetched",
		logx.String("query", q.String()),
		logx.Int("leads", len(leads)),
		logx.Duration("took", time.Since(start)))
	return leads, nil
}
