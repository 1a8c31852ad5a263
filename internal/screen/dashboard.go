package screen

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"watchpoint/internal/api"
	"watchpoint/internal/domain"
)

// DeletePrompt is the confirmation question shown before deleting a watch.
const DeletePrompt = "Delete this watch?"

// Dashboard lists the user's watches and their most recent changes.
type Dashboard struct {
	base
	client *api.Client

	user    *domain.User
	watches WatchList
	changes []domain.Change
	pending map[string]bool
}

// DashboardView is a render-ready snapshot of the dashboard.
type DashboardView struct {
	Phase   Phase
	Loading bool
	Error   string

	User    *domain.User
	Watches []domain.Watch
	Changes []domain.Change

	// Pending holds the ids of watches with a mutation in flight.
	Pending map[string]bool
}

func NewDashboard(client *api.Client, nav Navigator, logger logrus.FieldLogger) *Dashboard {
	d := &Dashboard{client: client, pending: make(map[string]bool)}
	d.init(client.Sessions(), nav, logger.WithField("component", "dashboard"))
	return d
}

// Load fetches the user, the watches and the recent changes in parallel.
// Either all three land or none does.
func (d *Dashboard) Load(ctx context.Context) {
	d.beginLoad()
	defer d.endLoad()

	if !d.hasSession(ctx) {
		return
	}

	var (
		user    domain.User
		watches []domain.Watch
		changes []domain.Change
	)
	// A plain Group: a failure does not cancel the sibling requests, their
	// results are simply dropped.
	var g errgroup.Group
	g.Go(func() (err error) {
		user, err = d.client.Me(ctx)
		return err
	})
	g.Go(func() (err error) {
		watches, err = d.client.ListWatches(ctx)
		return err
	})
	g.Go(func() (err error) {
		changes, err = d.client.RecentChanges(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		d.handle(err, "")
		return
	}

	d.mu.Lock()
	d.user = &user
	d.watches = WatchList{Version: d.watches.Version + 1, Items: watches}
	d.changes = changes
	d.markReady()
	d.mu.Unlock()

	d.log.WithFields(logrus.Fields{
		"watches": len(watches),
		"changes": len(changes),
	}).Info("Dashboard loaded")
}

// begin marks id as pending. It returns the watch as currently displayed and
// false when the watch is unknown or already has a mutation in flight.
func (d *Dashboard) begin(id string) (domain.Watch, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.watches.Find(id)
	if !ok || d.pending[id] {
		return domain.Watch{}, false
	}
	d.pending[id] = true
	d.errMsg = ""
	return w, true
}

func (d *Dashboard) finish(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// TogglePause pauses an active watch or resumes a paused one. The local flag
// only changes once the server confirmed the call.
func (d *Dashboard) TogglePause(ctx context.Context, id string) {
	w, ok := d.begin(id)
	if !ok {
		return
	}
	defer d.finish(id)

	next, err := togglePause(ctx, d.client, w)

	d.mu.Lock()
	d.watches = ApplyPauseResult(d.watches, id, next, err)
	d.mu.Unlock()
	d.handle(err, "")
}

// togglePause picks the endpoint from the current state and returns the
// state the watch is in once the call succeeds.
func togglePause(ctx context.Context, client *api.Client, w domain.Watch) (bool, error) {
	if w.IsActive {
		return false, client.PauseWatch(ctx, w.ID)
	}
	return true, client.ResumeWatch(ctx, w.ID)
}

// Delete removes a watch after the user confirmed it. Without confirmation
// nothing is sent.
func (d *Dashboard) Delete(ctx context.Context, id string, confirm Confirmer) {
	if confirm == nil || !confirm.Confirm(DeletePrompt) {
		return
	}
	if _, ok := d.begin(id); !ok {
		return
	}
	defer d.finish(id)

	err := d.client.DeleteWatch(ctx, id)

	d.mu.Lock()
	d.watches = ApplyDeleteResult(d.watches, id, err)
	d.mu.Unlock()
	d.handle(err, "")
	if err == nil {
		d.log.WithField("watch_id", id).Info("Watch deleted")
	}
}

// Logout ends the session and sends the user to login.
func (d *Dashboard) Logout(ctx context.Context) {
	if err := d.sessions.EndSession(ctx); err != nil {
		d.log.WithError(err).Error("Failed to end session")
	}
	d.redirect()
}

// View returns a snapshot safe to render while operations continue.
func (d *Dashboard) View() DashboardView {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := DashboardView{
		Phase:   d.phase,
		Loading: d.loading,
		Error:   d.errMsg,
		Watches: append([]domain.Watch(nil), d.watches.Items...),
		Changes: append([]domain.Change(nil), d.changes...),
		Pending: make(map[string]bool, len(d.pending)),
	}
	if d.user != nil {
		u := *d.user
		v.User = &u
	}
	for id := range d.pending {
		v.Pending[id] = true
	}
	return v
}

// Watches returns the current versioned watch list.
func (d *Dashboard) Watches() WatchList {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.watches
}
