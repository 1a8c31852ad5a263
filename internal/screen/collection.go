package screen

import "watchpoint/internal/domain"

// The reducers below take the prior collection and the outcome of a request
// and return the next collection. A non-nil err always yields prev untouched,
// which is what keeps local state from moving ahead of the server.

// WatchList is a versioned snapshot of the watches a screen displays.
type WatchList struct {
	Version int
	Items   []domain.Watch
}

// NewWatchList wraps freshly fetched watches.
func NewWatchList(items []domain.Watch) WatchList {
	return WatchList{Items: items}
}

// Find returns the watch with id.
func (l WatchList) Find(id string) (domain.Watch, bool) {
	for _, w := range l.Items {
		if w.ID == id {
			return w, true
		}
	}
	return domain.Watch{}, false
}

// ApplyPauseResult records a confirmed pause or resume: the watch with id ends
// up with IsActive == active. Schedule fields are left as the server sent them.
func ApplyPauseResult(prev WatchList, id string, active bool, err error) WatchList {
	if err != nil {
		return prev
	}
	if _, ok := prev.Find(id); !ok {
		return prev
	}
	next := WatchList{Version: prev.Version + 1, Items: make([]domain.Watch, len(prev.Items))}
	for i, w := range prev.Items {
		if w.ID == id {
			w.IsActive = active
		}
		next.Items[i] = w
	}
	return next
}

// ApplyDeleteResult drops the watch with id after a confirmed delete.
func ApplyDeleteResult(prev WatchList, id string, err error) WatchList {
	if err != nil {
		return prev
	}
	if _, ok := prev.Find(id); !ok {
		return prev
	}
	next := WatchList{Version: prev.Version + 1, Items: make([]domain.Watch, 0, len(prev.Items)-1)}
	for _, w := range prev.Items {
		if w.ID != id {
			next.Items = append(next.Items, w)
		}
	}
	return next
}

// ChangeList is a versioned snapshot of the changes a screen displays.
type ChangeList struct {
	Version int
	Items   []domain.Change
}

func NewChangeList(items []domain.Change) ChangeList {
	return ChangeList{Items: items}
}

// Find returns the change with id.
func (l ChangeList) Find(id string) (domain.Change, bool) {
	for _, c := range l.Items {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Change{}, false
}

// ApplyFeedbackResult stores fb on the change with id after the server accepted it.
func ApplyFeedbackResult(prev ChangeList, id string, fb domain.Feedback, err error) ChangeList {
	if err != nil {
		return prev
	}
	if _, ok := prev.Find(id); !ok {
		return prev
	}
	next := ChangeList{Version: prev.Version + 1, Items: make([]domain.Change, len(prev.Items))}
	for i, c := range prev.Items {
		if c.ID == id {
			v := fb
			c.UserFeedback = &v
		}
		next.Items[i] = c
	}
	return next
}
