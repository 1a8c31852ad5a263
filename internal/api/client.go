// Package api is the authenticated HTTP client for the WatchPoint REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"watchpoint/internal/domain"
	"watchpoint/internal/session"
)

// DefaultBaseURL matches the API server's local development address.
const DefaultBaseURL = "http://localhost:3000"

// Client issues authenticated requests on behalf of one session.
// It never retries and sets no timeout of its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   session.Provider
	log        logrus.FieldLogger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client. sessions is consulted before every request.
func New(baseURL string, sessions session.Provider, logger logrus.FieldLogger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		sessions:   sessions,
		log:        logger.WithField("component", "api_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sessions returns the provider the client authenticates with.
func (c *Client) Sessions() session.Provider {
	return c.sessions
}

// Do sends method path with an optional JSON body and decodes the response
// into out when out is non-nil. body is only sent for POST and PUT.
//
// Without a session Do fails with domain.ErrAuthRequired and makes no
// network call. Non-2xx responses become *domain.APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	token, ok, err := c.sessions.CurrentToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthRequired, err)
	}
	if !ok {
		return domain.ErrAuthRequired
	}

	reqID := uuid.NewString()
	log := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": reqID,
	})

	var reader io.Reader
	withBody := body != nil && (method == http.MethodPost || method == http.MethodPut)
	if withBody {
		b, err := json.Marshal(body)
		if err != nil {
			return &domain.TransportError{Op: "encode request body", Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.TransportError{Op: "create request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+string(token))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if withBody {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug("API request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("API request failed")
		return &domain.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Op: "read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseErrorBody(resp.StatusCode, raw)
		log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"error":  apiErr.Message,
		}).Info("API returned error")
		return apiErr
	}

	log.WithField("status", resp.StatusCode).Debug("API response")
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.TransportError{Op: "decode response body", Err: err}
	}
	return nil
}

// errorBody is the error shape the API server emits.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseErrorBody(status int, raw []byte) *domain.APIError {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		return domain.NewAPIError(status, "")
	}
	if eb.Message != "" {
		return domain.NewAPIError(status, eb.Message)
	}
	return domain.NewAPIError(status, eb.Error)
}

// Get fetches path and decodes it as T.
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Post sends body to path and decodes the response as T.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodPost, path, body, &out)
	return out, err
}

// Put sends body to path and decodes the response as T.
func Put[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodPut, path, body, &out)
	return out, err
}

// Delete removes the resource at path, discarding any response body.
func Delete(ctx context.Context, c *Client, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}
