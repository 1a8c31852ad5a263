package api

import (
	"context"
	"net/http"
	"net/url"

	"watchpoint/internal/domain"
)

func watchPath(id string) string {
	return "/api/watches/" + url.PathEscape(id)
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	return Get[domain.User](ctx, c, "/api/me")
}

// ListWatches returns every watch owned by the user.
func (c *Client) ListWatches(ctx context.Context) ([]domain.Watch, error) {
	return Get[[]domain.Watch](ctx, c, "/api/watches")
}

// RecentChanges returns the latest changes across all watches, each carrying
// its parent watch's name and URL.
func (c *Client) RecentChanges(ctx context.Context) ([]domain.Change, error) {
	return Get[[]domain.Change](ctx, c, "/api/changes/recent")
}

// GetWatch returns one watch together with its changes.
func (c *Client) GetWatch(ctx context.Context, id string) (domain.WatchWithChanges, error) {
	return Get[domain.WatchWithChanges](ctx, c, watchPath(id))
}

// CreateWatch registers a new watch. The input is not validated here.
func (c *Client) CreateWatch(ctx context.Context, in domain.CreateWatchInput) (domain.Watch, error) {
	return Post[domain.Watch](ctx, c, "/api/watches", in)
}

func (c *Client) PauseWatch(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodPost, watchPath(id)+"/pause", nil, nil)
}

func (c *Client) ResumeWatch(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodPost, watchPath(id)+"/resume", nil, nil)
}

func (c *Client) DeleteWatch(ctx context.Context, id string) error {
	return Delete(ctx, c, watchPath(id))
}

type feedbackBody struct {
	Feedback domain.Feedback `json:"feedback"`
}

// SubmitFeedback records the user's classification of a change.
func (c *Client) SubmitFeedback(ctx context.Context, changeID string, fb domain.Feedback) error {
	return c.Do(ctx, http.MethodPost, "/api/feedback/"+url.PathEscape(changeID), feedbackBody{Feedback: fb}, nil)
}
