package domain

import (
	"net/url"
	"time"
)

// Check interval presets offered by the New Watch form, in seconds.
const (
	IntervalFifteenMinutes = 900
	IntervalHourly         = 3600
	IntervalDaily          = 86400

	// DefaultCheckInterval is preselected when the user does not choose one.
	DefaultCheckInterval = IntervalDaily
)

// IntervalChoices lists the presets in the order they are offered.
var IntervalChoices = []int{IntervalFifteenMinutes, IntervalHourly, IntervalDaily}

// Watch is a monitoring configuration together with its server-computed status.
type Watch struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// TargetURL is the page being monitored.
	TargetURL string `json:"target_url"`

	Name *string `json:"name,omitempty"`

	// Selector optionally narrows monitoring to part of the page.
	Selector *string `json:"selector,omitempty"`

	// CheckIntervalSeconds is always > 0.
	CheckIntervalSeconds int `json:"check_interval_seconds"`

	// IsActive is the only field the client echoes locally, and only after the
	// server confirmed a pause or resume.
	IsActive bool `json:"is_active"`

	// LastCheckedAt and NextCheckAt are computed by the monitoring service.
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	NextCheckAt   *time.Time `json:"next_check_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the user-chosen name, falling back to the target host.
func (w Watch) DisplayName() string {
	if w.Name != nil && *w.Name != "" {
		return *w.Name
	}
	if u, err := url.Parse(w.TargetURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return w.TargetURL
}

// ShowNextCheck reports whether the next scheduled check is worth displaying.
// Paused watches keep a stale NextCheckAt on the server.
func (w Watch) ShowNextCheck() bool {
	return w.IsActive && w.NextCheckAt != nil
}

// WatchWithChanges is the detail payload of GET /api/watches/{id}.
type WatchWithChanges struct {
	Watch
	Changes []Change `json:"changes"`
}

// CreateWatchInput is the body of POST /api/watches.
type CreateWatchInput struct {
	TargetURL            string  `json:"target_url"`
	Name                 *string `json:"name,omitempty"`
	CheckIntervalSeconds int     `json:"check_interval_seconds"`
	Selector             *string `json:"selector,omitempty"`
}
