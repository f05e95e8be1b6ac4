package lead

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Query parameterizes one collection run. The engine treats it as opaque
// and only hands it to the fetch collaborator.
type Query struct {
	Location string `json:"location"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (q Query) String() string {
	if q.Category == "" {
		return q.Location
	}
	return q.Location + "/" + q.Category
}

// Lead is a single collected business contact.
type Lead struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Website  string `json:"website,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	Category string `json:"category,omitempty"`

	// Completeness is a 0..100 score of how many contact fields are filled.
	Completeness int `json:"completeness"`

	CollectedAt time.Time `json:"collected_at,omitempty"`
}

// IdentityKey is the dedup key: the same business found twice (same name
// at the same address) must map to the same key regardless of casing.
func (l Lead) IdentityKey() string {
	return strings.ToLower(strings.TrimSpace(l.Name)) + "|" + strings.ToLower(strings.TrimSpace(l.Address))
}

// EnsureID assigns a fresh UUID when the source did not provide one.
func (l *Lead) EnsureID() {
	if strings.TrimSpace(l.ID) == "" {
		l.ID = uuid.NewString()
	}
}

// PassesQuality reports whether a lead clears the minimum contact
// completeness bar. A pure predicate; minCompleteness <= 0 accepts all.
func PassesQuality(l Lead, minCompleteness int) bool {
	if minCompleteness <= 0 {
		return true
	}
	return l.Completeness >= minCompleteness
}

// Analysis is the optional enrichment result attached to a stored lead.
// A failed probe is recorded in Error and never fails the task.
type Analysis struct {
	Reachable  bool          `json:"reachable"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency,omitempty"`
	AnalyzedAt time.Time     `json:"analyzed_at"`
	Error      string        `json:"error,omitempty"`
}
