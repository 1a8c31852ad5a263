package domain

import (
	"sort"
	"time"
)

// ChangeWatchRef is the denormalized parent watch carried by recent changes.
type ChangeWatchRef struct {
	Name      *string `json:"name,omitempty"`
	TargetURL string  `json:"target_url"`
}

// Label returns the watch name or, failing that, its URL.
func (r *ChangeWatchRef) Label() string {
	if r == nil {
		return ""
	}
	if r.Name != nil && *r.Name != "" {
		return *r.Name
	}
	return r.TargetURL
}

// Change is a difference detected by the monitoring service.
type Change struct {
	ID      string `json:"id"`
	WatchID string `json:"watch_id"`

	ChangeSummary string    `json:"change_summary"`
	DetectedAt    time.Time `json:"detected_at"`

	ImportanceScore *float64 `json:"importance_score,omitempty"`

	// UserFeedback is authoritative once the server has it.
	UserFeedback *Feedback `json:"user_feedback,omitempty"`

	// Watch is only populated by /api/changes/recent.
	Watch *ChangeWatchRef `json:"watch,omitempty"`
}

// HasFeedback reports whether the server already holds feedback for the change.
func (c Change) HasFeedback() bool {
	return c.UserFeedback != nil && c.UserFeedback.IsValid()
}

// SortChangesByDetectedAt returns a copy ordered newest first.
func SortChangesByDetectedAt(changes []Change) []Change {
	out := make([]Change, len(changes))
	copy(out, changes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	return out
}
