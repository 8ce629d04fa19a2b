// Package toggl is a minimal Toggl Track API v9 client covering what the
// sync needs: the current user, workspace metadata, and time entries.
package toggl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"togglsync/internal/engine"
	"togglsync/internal/model"
)

const defaultBaseURL = "https://api.track.toggl.com/api/v9"

// Client is an authenticated Toggl Track API client. Toggl uses HTTP basic
// auth with the API token as username and the literal string "api_token"
// as password.
type Client struct {
	baseURL     string
	apiToken    string
	workspaceID int64
	projectID   int64 // 0 = all projects
	userID      int64 // 0 = all users
	httpClient  *http.Client
	log         zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (used in tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithProjectFilter limits fetched entries to one Toggl project.
func WithProjectFilter(projectID int64) Option {
	return func(c *Client) { c.projectID = projectID }
}

// WithUserFilter limits fetched entries to one Toggl user.
func WithUserFilter(userID int64) Option {
	return func(c *Client) { c.userID = userID }
}

// NewClient creates a Toggl client for the given workspace.
func NewClient(apiToken string, workspaceID int64, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     defaultBaseURL,
		apiToken:    apiToken,
		workspaceID: workspaceID,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// timeEntry is the wire format of a Toggl time entry.
type timeEntry struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	Stop        time.Time `json:"stop"`
	Duration    int64     `json:"duration"`
	Billable    bool      `json:"billable"`
	ProjectID   int64     `json:"project_id"`
	UserID      int64     `json:"user_id"`
	WorkspaceID int64     `json:"workspace_id"`
	Tags        []string  `json:"tags"`
}

// User is the Toggl account returned by /me.
type User struct {
	ID       int64  `json:"id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

// Workspace is Toggl workspace metadata.
type Workspace struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Project is a Toggl project within the workspace.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FetchEntries returns completed time entries in [since, until]. Running
// timers (non-positive duration) are dropped, as are entries outside the
// range or filtered out by the configured project/user. The wire request
// extends the end date by one day because the API treats it as exclusive.
func (c *Client) FetchEntries(ctx context.Context, since, until time.Time) ([]model.TimeEntry, error) {
	endpoint := fmt.Sprintf("%s/me/time_entries?start_date=%s&end_date=%s",
		c.baseURL,
		url.QueryEscape(since.Format("2006-01-02")),
		url.QueryEscape(until.AddDate(0, 0, 1).Format("2006-01-02")),
	)

	var raw []timeEntry
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	entries := make([]model.TimeEntry, 0, len(raw))
	for _, te := range raw {
		if te.Duration <= 0 {
			c.log.Debug().Int64("entry_id", te.ID).Msg("skipping running timer")
			continue
		}
		if te.Start.After(until) {
			continue
		}
		if c.projectID != 0 && te.ProjectID != c.projectID {
			continue
		}
		if c.userID != 0 && te.UserID != c.userID {
			continue
		}
		entries = append(entries, model.TimeEntry{
			ID:              te.ID,
			Description:     te.Description,
			Start:           te.Start,
			Stop:            te.Stop,
			DurationSeconds: te.Duration,
			Billable:        te.Billable,
			ProjectID:       te.ProjectID,
			UserID:          te.UserID,
			Tags:            te.Tags,
		})
	}
	c.log.Debug().Int("fetched", len(raw)).Int("kept", len(entries)).Msg("fetched time entries")
	return entries, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.getJSON(ctx, c.baseURL+"/me", &u)
	return u, err
}

// Workspace returns the configured workspace's metadata.
func (c *Client) Workspace(ctx context.Context) (Workspace, error) {
	var w Workspace
	err := c.getJSON(ctx, fmt.Sprintf("%s/workspaces/%d", c.baseURL, c.workspaceID), &w)
	return w, err
}

// Projects lists the workspace's projects.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var ps []Project
	err := c.getJSON(ctx, fmt.Sprintf("%s/workspaces/%d/projects", c.baseURL, c.workspaceID), &ps)
	return ps, err
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.apiToken, "api_token")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("toggl request failed: %v: %w", err, engine.ErrConnectivity)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading toggl response: %v: %w", err, engine.ErrConnectivity)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("toggl rejected credentials (%d): %w", resp.StatusCode, engine.ErrAuth)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("toggl API error %d: %s: %w", resp.StatusCode, string(body), engine.ErrConnectivity)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding toggl response: %w", err)
	}
	return nil
}
