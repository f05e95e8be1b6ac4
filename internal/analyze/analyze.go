package analyze

import (
	"context"
	"net/http"
	"time"

	logx "leadgen/pkg/logx"

	"leadgen/internal/lead"
)

// Analyzer enriches a stored lead. Failures are reported in the returned
// Analysis, never as a task-level error.
type Analyzer interface {
	Analyze(ctx context.Context, l lead.Lead) lead.Analysis
}

// Func adapts a plain function to Analyzer.
type Func func(ctx context.Context, l lead.Lead) lead.Analysis

func (f Func) Analyze(ctx context.Context, l lead.Lead) lead.Analysis {
	return f(ctx, l)
}

// WebsiteProbe checks whether a lead's website responds and how fast.
type WebsiteProbe struct {
	client *http.Client
	log    logx.Logger
}

func NewWebsiteProbe(timeout time.Duration, log logx.Logger) *WebsiteProbe {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &WebsiteProbe{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (p *WebsiteProbe) Analyze(ctx context.Context, l lead.Lead) lead.Analysis {
	a := lead.Analysis{AnalyzedAt: time.Now()}
	if l.Website == "" {
		a.Error = "no website"
		return a
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, l.Website, nil)
	if err != nil {
		a.Error = err.Error()
		return a
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	a.Latency = time.Since(start)
	if err != nil {
		a.Error = err.Error()
		p.log.Debug("website probe failed", logx.String("website", l.Website), logx.Err(err))
		return a
	}
	defer resp.Body.Close()

	a.StatusCode = resp.StatusCode
	a.Reachable = resp.StatusCode >= 200 && resp.StatusCode < 400
	return a
}
