package screen

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"watchpoint/internal/api"
	"watchpoint/internal/domain"
	"watchpoint/internal/preview"
)

// User-facing messages of the New Watch form.
const (
	MsgInvalidURL      = "Please enter a valid URL"
	MsgInvalidInterval = "Please choose a check interval"
	MsgUpgradeRequired = "Upgrade required for faster check intervals"
	MsgDuplicateWatch  = "You are already watching this URL"
	MsgNoSelectorMatch = "The selector does not match anything on this page"
)

// Form is the New Watch form as the user filled it in.
type Form struct {
	TargetURL            string
	Name                 string
	CheckIntervalSeconds int
	Selector             string
}

// NewForm returns an empty form with the default interval preselected.
func NewForm() Form {
	return Form{CheckIntervalSeconds: domain.DefaultCheckInterval}
}

// Input converts the form into the API request. Blank optional fields are
// left out of the request.
func (f Form) Input() domain.CreateWatchInput {
	in := domain.CreateWatchInput{
		TargetURL:            strings.TrimSpace(f.TargetURL),
		CheckIntervalSeconds: f.CheckIntervalSeconds,
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		in.Name = &name
	}
	if sel := strings.TrimSpace(f.Selector); sel != "" {
		in.Selector = &sel
	}
	return in
}

// NewWatch is the creation form. On success it navigates to the dashboard;
// there is no local state to reconcile afterwards.
type NewWatch struct {
	base
	client    *api.Client
	previewer preview.Previewer

	form       Form
	preview    *preview.Result
	previewing bool
	created    *domain.Watch
}

// NewWatchView is a render-ready snapshot of the form screen.
type NewWatchView struct {
	Phase   Phase
	Loading bool
	Error   string

	// Form keeps whatever the user submitted last so a failed submit can be
	// corrected in place.
	Form Form

	Preview    *preview.Result
	Previewing bool
}

// NewNewWatch creates the form screen. previewer may be nil, in which case
// previews are unavailable.
func NewNewWatch(client *api.Client, previewer preview.Previewer, nav Navigator, logger logrus.FieldLogger) *NewWatch {
	s := &NewWatch{client: client, previewer: previewer, form: NewForm()}
	s.init(client.Sessions(), nav, logger.WithField("component", "new_watch"))
	return s
}

// CheckSession redirects to login when there is no session.
func (s *NewWatch) CheckSession(ctx context.Context) {
	if !s.hasSession(ctx) {
		return
	}
	s.mu.Lock()
	s.markReady()
	s.mu.Unlock()
}

// validationMessage maps a client-side validation failure to form copy.
func validationMessage(err error) string {
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		return err.Error()
	}
	switch vErr.Field {
	case "target_url":
		return MsgInvalidURL
	case "check_interval_seconds":
		return MsgInvalidInterval
	case "selector":
		return "Invalid CSS selector: " + vErr.Message
	}
	return vErr.Error()
}

// submitMessage maps a failed create call to form copy.
func submitMessage(err error) string {
	var apiErr *domain.APIError
	switch {
	case errors.Is(err, domain.ErrUpgradeRequired):
		return MsgUpgradeRequired
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
		return MsgDuplicateWatch
	}
	return errorMessage(err)
}

// Submit validates the form locally and creates the watch. Validation
// failures never reach the network.
func (s *NewWatch) Submit(ctx context.Context, form Form) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return
	}
	s.form = form
	s.errMsg = ""
	s.loading = true
	s.mu.Unlock()
	defer s.endLoad()

	in := form.Input()
	if err := in.Validate(); err != nil {
		s.setError(validationMessage(err))
		s.log.WithError(err).Debug("Form rejected before submit")
		return
	}

	created, err := s.client.CreateWatch(ctx, in)
	if err != nil {
		s.handle(err, submitMessage(err))
		return
	}

	s.mu.Lock()
	s.created = &created
	s.mu.Unlock()
	s.log.WithField("watch_id", created.ID).Info("Watch created")

	if s.nav != nil {
		s.nav.ToDashboard()
	}
}

// Preview renders the page with the form's selector. It never blocks
// submission; failures only show up inline.
func (s *NewWatch) Preview(ctx context.Context, form Form) {
	if s.previewer == nil {
		return
	}
	in := form.Input()
	if err := domain.ValidateTargetURL(in.TargetURL); err != nil {
		s.setError(validationMessage(err))
		return
	}
	sel := ""
	if in.Selector != nil {
		sel = *in.Selector
		if err := domain.ValidateSelector(sel); err != nil {
			s.setError(validationMessage(err))
			return
		}
	}

	s.mu.Lock()
	if s.previewing {
		s.mu.Unlock()
		return
	}
	s.form = form
	s.previewing = true
	s.errMsg = ""
	s.mu.Unlock()

	res, err := s.previewer.Preview(ctx, in.TargetURL, sel)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.previewing = false
	if err != nil {
		s.errMsg = "Preview failed: " + err.Error()
		s.log.WithError(err).Warn("Preview failed")
		return
	}
	s.preview = &res
	if !res.Found() {
		s.errMsg = MsgNoSelectorMatch
	}
}

// Created returns the watch created by the last successful submit.
func (s *NewWatch) Created() (domain.Watch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created == nil {
		return domain.Watch{}, false
	}
	return *s.created, true
}

func (s *NewWatch) View() NewWatchView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := NewWatchView{
		Phase:      s.phase,
		Loading:    s.loading,
		Error:      s.errMsg,
		Form:       s.form,
		Previewing: s.previewing,
	}
	if s.preview != nil {
		p := *s.preview
		v.Preview = &p
	}
	return v
}
