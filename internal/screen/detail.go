package screen

import (
	"context"

	"github.com/sirupsen/logrus"

	"watchpoint/internal/api"
	"watchpoint/internal/domain"
)

// WatchDetail shows one watch with its changes and collects feedback on them.
type WatchDetail struct {
	base
	client  *api.Client
	watchID string

	watch   *domain.Watch
	changes ChangeList
	toggle  bool

	// saving holds change ids with a feedback request in flight.
	saving map[string]bool
	// confirmed holds change ids whose feedback was accepted during this
	// screen's lifetime, with the value that was sent.
	confirmed map[string]domain.Feedback
}

// FeedbackState tells the UI how to render the feedback controls of a change.
type FeedbackState struct {
	// Saved means feedback exists; controls must not be offered again.
	Saved bool
	// Saving means a submission is in flight; controls are disabled.
	Saving bool
	// Value is the feedback to display when Saved. It may be nil if only the
	// session knows the change was rated.
	Value *domain.Feedback
}

// DetailView is a render-ready snapshot of the watch detail screen.
type DetailView struct {
	Phase   Phase
	Loading bool
	Error   string

	// Watch is nil until loaded, or when the watch could not be fetched.
	Watch *domain.Watch

	// Changes are ordered newest first.
	Changes  []domain.Change
	Feedback map[string]FeedbackState

	TogglePending bool
}

func NewWatchDetail(client *api.Client, watchID string, nav Navigator, logger logrus.FieldLogger) *WatchDetail {
	d := &WatchDetail{
		client:    client,
		watchID:   watchID,
		saving:    make(map[string]bool),
		confirmed: make(map[string]domain.Feedback),
	}
	d.init(client.Sessions(), nav, logger.WithFields(logrus.Fields{
		"component": "watch_detail",
		"watch_id":  watchID,
	}))
	return d
}

// WatchID returns the id of the watch this screen was opened for.
func (d *WatchDetail) WatchID() string {
	return d.watchID
}

// Load fetches the watch and its changes. Feedback confirmed earlier on this
// screen stays confirmed across reloads.
func (d *WatchDetail) Load(ctx context.Context) {
	d.beginLoad()
	defer d.endLoad()

	if !d.hasSession(ctx) {
		return
	}

	data, err := d.client.GetWatch(ctx, d.watchID)
	if err != nil {
		d.handle(err, "")
		return
	}

	d.mu.Lock()
	w := data.Watch
	d.watch = &w
	d.changes = ChangeList{Version: d.changes.Version + 1, Items: data.Changes}
	d.markReady()
	d.mu.Unlock()

	d.log.WithField("changes", len(data.Changes)).Info("Watch detail loaded")
}

// feedbackState computes the state for c. Caller holds mu.
func (d *WatchDetail) feedbackState(c domain.Change) FeedbackState {
	st := FeedbackState{Saving: d.saving[c.ID]}
	if c.HasFeedback() {
		v := *c.UserFeedback
		st.Saved, st.Value = true, &v
		return st
	}
	if v, ok := d.confirmed[c.ID]; ok {
		st.Saved, st.Value = true, &v
	}
	return st
}

// FeedbackState reports how the feedback controls of changeID should render.
func (d *WatchDetail) FeedbackState(changeID string) FeedbackState {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.changes.Find(changeID)
	if !ok {
		return FeedbackState{}
	}
	return d.feedbackState(c)
}

// HasChange reports whether changeID is among the changes on display.
func (d *WatchDetail) HasChange(changeID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.changes.Find(changeID)
	return ok
}

// SubmitFeedback sends fb for changeID. Changes that already carry feedback,
// or have a submission in flight, are left alone. On failure nothing is
// recorded, so the user can try again.
func (d *WatchDetail) SubmitFeedback(ctx context.Context, changeID string, fb domain.Feedback) {
	if !fb.IsValid() {
		d.handle(domain.NewValidationError("feedback", "unknown value "+string(fb)), "")
		return
	}

	d.mu.Lock()
	c, ok := d.changes.Find(changeID)
	if !ok || d.saving[changeID] || d.feedbackState(c).Saved {
		d.mu.Unlock()
		return
	}
	d.saving[changeID] = true
	d.errMsg = ""
	d.mu.Unlock()

	err := d.client.SubmitFeedback(ctx, changeID, fb)

	d.mu.Lock()
	delete(d.saving, changeID)
	if err == nil {
		d.confirmed[changeID] = fb
	}
	d.changes = ApplyFeedbackResult(d.changes, changeID, fb, err)
	d.mu.Unlock()

	d.handle(err, "")
	if err == nil {
		d.log.WithFields(logrus.Fields{
			"change_id": changeID,
			"feedback":  fb,
		}).Info("Feedback saved")
	}
}

// TogglePause pauses or resumes the watch shown on this screen.
func (d *WatchDetail) TogglePause(ctx context.Context) {
	d.mu.Lock()
	if d.watch == nil || d.toggle {
		d.mu.Unlock()
		return
	}
	w := *d.watch
	d.toggle = true
	d.errMsg = ""
	d.mu.Unlock()

	next, err := togglePause(ctx, d.client, w)

	d.mu.Lock()
	d.toggle = false
	list := ApplyPauseResult(NewWatchList([]domain.Watch{*d.watch}), w.ID, next, err)
	updated := list.Items[0]
	d.watch = &updated
	d.mu.Unlock()
	d.handle(err, "")
}

// View returns a snapshot safe to render while operations continue.
func (d *WatchDetail) View() DetailView {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := DetailView{
		Phase:         d.phase,
		Loading:       d.loading,
		Error:         d.errMsg,
		Changes:       domain.SortChangesByDetectedAt(d.changes.Items),
		Feedback:      make(map[string]FeedbackState, len(d.changes.Items)),
		TogglePending: d.toggle,
	}
	if d.watch != nil {
		w := *d.watch
		v.Watch = &w
	}
	for _, c := range d.changes.Items {
		v.Feedback[c.ID] = d.feedbackState(c)
	}
	return v
}
