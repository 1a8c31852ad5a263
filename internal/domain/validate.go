package domain

import (
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
)

// ValidateTargetURL checks that raw is an absolute http(s) URL.
func ValidateTargetURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NewValidationError("target_url", "URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return NewValidationError("target_url", "malformed URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewValidationError("target_url", "must use HTTP or HTTPS")
	}
	if u.Host == "" {
		return NewValidationError("target_url", "missing host")
	}
	return nil
}

// ValidateSelector checks CSS selector syntax. An empty selector is valid.
func ValidateSelector(sel string) error {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil
	}
	if _, err := cascadia.Compile(sel); err != nil {
		return NewValidationError("selector", err.Error())
	}
	return nil
}

// Validate runs every client-side check for a new watch.
func (in CreateWatchInput) Validate() error {
	if err := ValidateTargetURL(in.TargetURL); err != nil {
		return err
	}
	if in.CheckIntervalSeconds <= 0 {
		return NewValidationError("check_interval_seconds", "must be positive")
	}
	if in.Selector != nil {
		if err := ValidateSelector(*in.Selector); err != nil {
			return err
		}
	}
	return nil
}
