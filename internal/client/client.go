// Package client is the CLI side of the status API: a thin JSON over
// HTTP client for the endpoints internal/server exposes. It never talks
// to the cluster or the manifest source itself; all state comes from a
// running serve process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"capstan/internal/api"
)

// DefaultTimeout bounds one API round trip.
const DefaultTimeout = 30 * time.Second

// Config configures the API client.
type Config struct {
	// BaseURL locates the status API, e.g. "http://localhost:8530".
	BaseURL string

	// HTTPClient optionally overrides the default client, mainly for
	// tests and custom TLS setups.
	HTTPClient *http.Client
}

// Client talks to a running serve process.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a status API client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

// ListApplications returns a summary for every known Application.
func (c *Client) ListApplications(ctx context.Context) ([]api.ApplicationSummary, error) {
	var list []api.ApplicationSummary
	if err := c.do(ctx, http.MethodGet, "/api/v1/applications", "", nil, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return list, nil
}

// GetApplication returns the detail view for one Application. Unknown
// names come back as a NotFoundError.
func (c *Client) GetApplication(ctx context.Context, name string) (*api.ApplicationDetail, error) {
	var detail api.ApplicationDetail
	path := "/api/v1/applications/" + url.PathEscape(name)
	if err := c.do(ctx, http.MethodGet, path, name, nil, &detail, http.StatusOK); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetHistory returns the retained sync results for one Application,
// newest first.
func (c *Client) GetHistory(ctx context.Context, name string) ([]api.SyncResult, error) {
	var history []api.SyncResult
	path := "/api/v1/applications/" + url.PathEscape(name) + "/history"
	if err := c.do(ctx, http.MethodGet, path, name, nil, &history, http.StatusOK); err != nil {
		return nil, err
	}
	return history, nil
}

// TriggerSync asks the engine to reconcile one Application. The server
// acknowledges with 202 as soon as the trigger is queued; use
// WaitForSync to observe the outcome.
func (c *Client) TriggerSync(ctx context.Context, name string, req api.SyncRequest) error {
	path := "/api/v1/applications/" + url.PathEscape(name) + "/sync"
	return c.do(ctx, http.MethodPost, path, name, req, nil, http.StatusAccepted)
}

// Healthy probes the liveness endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil, http.StatusOK)
}

// WaitForSync polls until a sync attempt other than baselineOp has
// completed, then returns the fresh detail. baselineOp is the
// OperationID of the Application's last result before the trigger, or
// empty when it had none. The context deadline bounds the wait.
func (c *Client) WaitForSync(ctx context.Context, name, baselineOp string, interval time.Duration) (*api.ApplicationDetail, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		detail, err := c.GetApplication(ctx, name)
		if err != nil {
			return nil, err
		}
		if detail.LastResult != nil && detail.LastResult.OperationID != baselineOp {
			return detail, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for sync of %q: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// do sends one request and decodes the JSON response into into when the
// status matches want. A 404 for a named Application comes back as a
// NotFoundError so callers can branch on api.IsNotFound.
func (c *Client) do(ctx context.Context, method, path, appName string, payload, into interface{}, want int) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach status API at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == want:
	case resp.StatusCode == http.StatusNotFound && appName != "":
		return api.NewApplicationNotFoundError(appName)
	default:
		return apiError(resp.StatusCode, data)
	}

	if into == nil {
		return nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiError turns a non-2xx response into an error, preferring the
// server's JSON error message over the raw body.
func apiError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("server returned %d: %s", status, payload.Error)
	}
	return fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
}
