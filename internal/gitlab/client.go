// Package gitlab is a GitLab REST v4 client scoped to one project. It
// implements the issue lookup/creation and time-tracking writes the sync
// engine needs, including the note-based duplicate detection used for
// idempotent time logging.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"togglsync/internal/engine"
	"togglsync/internal/model"
	"togglsync/internal/timecalc"
)

// Client talks to one GitLab project. Authentication is either a personal
// access token sent as PRIVATE-TOKEN, or an OAuth access token sent as a
// bearer header via an oauth2 transport.
type Client struct {
	baseURL    string
	token      string
	oauthAuth  bool
	projectID  int64
	httpClient *http.Client
	log        zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithOAuthToken makes the client send the token as an OAuth bearer token
// instead of a PRIVATE-TOKEN header.
func WithOAuthToken() Option {
	return func(c *Client) { c.oauthAuth = true }
}

// NewClient creates a client for the given GitLab instance and project.
func NewClient(ctx context.Context, baseURL, token string, projectID int64, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		projectID: projectID,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.oauthAuth {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		c.httpClient = oauth2.NewClient(ctx, ts)
	} else {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// User is the authenticated GitLab account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Project is GitLab project metadata.
type Project struct {
	ID                int64  `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	Visibility        string `json:"visibility"`
}

// issue is the wire format of a GitLab issue.
type issue struct {
	ID     int64    `json:"id"`
	IID    int      `json:"iid"`
	Title  string   `json:"title"`
	State  string   `json:"state"`
	WebURL string   `json:"web_url"`
	Labels []string `json:"labels"`
}

// note is a comment on an issue.
type note struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

func (c *Client) projectURL(suffix string) string {
	return fmt.Sprintf("%s/api/v4/projects/%d%s", c.baseURL, c.projectID, suffix)
}

// CurrentUser returns the account the token authenticates as.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var u User
	_, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/v4/user", nil, &u)
	return u, err
}

// Project returns the target project's metadata.
func (c *Client) Project(ctx context.Context) (Project, error) {
	var p Project
	_, err := c.doJSON(ctx, http.MethodGet, c.projectURL(""), nil, &p)
	return p, err
}

// FindByIdentifier looks up an existing issue for the given business key.
// Numeric identifiers are tried as issue IIDs first; any identifier then
// falls back to a title search and finally a description search. Returns
// (nil, nil) when nothing matches.
func (c *Client) FindByIdentifier(ctx context.Context, identifier string) (*model.Ticket, error) {
	if identifier == "" {
		return nil, nil
	}

	if iid, err := strconv.Atoi(identifier); err == nil {
		var is issue
		_, err := c.doJSON(ctx, http.MethodGet, c.projectURL(fmt.Sprintf("/issues/%d", iid)), nil, &is)
		switch {
		case err == nil:
			return c.ticketFrom(is, identifier), nil
		case !errors.Is(err, errNotFound):
			return nil, err
		}
	}

	for _, in := range []string{"title", "description"} {
		endpoint := c.projectURL("/issues?" + url.Values{
			"search":   {identifier},
			"in":       {in},
			"state":    {"all"},
			"per_page": {"20"},
		}.Encode())
		var issues []issue
		if _, err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &issues); err != nil {
			return nil, err
		}
		if len(issues) > 0 {
			return c.ticketFrom(issues[0], identifier), nil
		}
	}
	return nil, nil
}

func (c *Client) ticketFrom(is issue, identifier string) *model.Ticket {
	return &model.Ticket{
		Identifier: identifier,
		Title:      is.Title,
		Ref:        is.IID,
		WebURL:     is.WebURL,
	}
}

// CreateTicket opens a new issue with the given title and labels.
func (c *Client) CreateTicket(ctx context.Context, title string, labels []string) (model.Ticket, error) {
	payload := map[string]string{
		"title":       title,
		"description": "Auto-created from Toggl time tracking.",
	}
	if len(labels) > 0 {
		payload["labels"] = strings.Join(labels, ",")
	}

	var is issue
	if _, err := c.doJSON(ctx, http.MethodPost, c.projectURL("/issues"), payload, &is); err != nil {
		return model.Ticket{}, err
	}
	c.log.Info().Int("iid", is.IID).Str("title", title).Msg("created issue")
	return *c.ticketFrom(is, title), nil
}

// AppendTimeLog adds spent time to an issue. The summary (carrying the
// duplicate-detection tag) is capped to GitLab's 255-character limit, and a
// tracking note is added so later runs can recover the tag from the notes.
func (c *Client) AppendTimeLog(ctx context.Context, ticketRef int, seconds int64, spentAt time.Time, summary string) error {
	if len(summary) > 255 {
		summary = summary[:255]
	}
	duration := timecalc.GitLabDuration(seconds)
	payload := map[string]string{
		"duration": duration,
		"summary":  summary,
		"spent_at": spentAt.Format("2006-01-02"),
	}
	endpoint := c.projectURL(fmt.Sprintf("/issues/%d/add_spent_time", ticketRef))
	if _, err := c.doJSON(ctx, http.MethodPost, endpoint, payload, nil); err != nil {
		return err
	}

	if model.SyncMarkerPattern.MatchString(summary) {
		body := fmt.Sprintf("Time logged: %s on %s - %s", duration, spentAt.Format("2006-01-02"), summary)
		if err := c.AddNote(ctx, ticketRef, body); err != nil {
			// The time is already booked; a missing tracking note only
			// weakens duplicate detection for this one entry.
			c.log.Warn().Err(err).Int("iid", ticketRef).Msg("could not add tracking note")
		}
	}
	return nil
}

// AddNote posts a comment on an issue.
func (c *Client) AddNote(ctx context.Context, ticketRef int, body string) error {
	endpoint := c.projectURL(fmt.Sprintf("/issues/%d/notes", ticketRef))
	_, err := c.doJSON(ctx, http.MethodPost, endpoint, map[string]string{"body": body}, nil)
	return err
}

// SetEstimate sets the issue's time estimate.
func (c *Client) SetEstimate(ctx context.Context, ticketRef int, seconds int64) error {
	endpoint := c.projectURL(fmt.Sprintf("/issues/%d/time_estimate", ticketRef))
	payload := map[string]string{"duration": timecalc.GitLabDuration(seconds)}
	_, err := c.doJSON(ctx, http.MethodPost, endpoint, payload, nil)
	return err
}

// SyncedEntryIDs scans the issue's notes for duplicate-detection tags and
// returns the Toggl entry IDs already logged on it.
func (c *Client) SyncedEntryIDs(ctx context.Context, ticketRef int) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	page := 1
	for {
		endpoint := c.projectURL(fmt.Sprintf("/issues/%d/notes?per_page=100&page=%d", ticketRef, page))
		var notes []note
		header, err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &notes)
		if err != nil {
			return nil, err
		}
		for _, n := range notes {
			for _, m := range model.SyncMarkerPattern.FindAllStringSubmatch(n.Body, -1) {
				id, err := strconv.ParseInt(m[1], 10, 64)
				if err == nil {
					ids[id] = true
				}
			}
		}
		next := header.Get("X-Next-Page")
		if next == "" || next == "0" || len(notes) == 0 {
			break
		}
		page, err = strconv.Atoi(next)
		if err != nil {
			break
		}
	}
	return ids, nil
}

// errNotFound distinguishes a 404 from real failures so FindByIdentifier
// can fall through to its search strategies.
var errNotFound = errors.New("not found")

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload, out any) (http.Header, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !c.oauthAuth {
		req.Header.Set("PRIVATE-TOKEN", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gitlab request failed: %v: %w", err, engine.ErrConnectivity)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading gitlab response: %v: %w", err, engine.ErrConnectivity)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return resp.Header, fmt.Errorf("decoding gitlab response: %w", err)
			}
		}
		return resp.Header, nil
	case http.StatusNotFound:
		return resp.Header, fmt.Errorf("gitlab resource not found: %w", errNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return resp.Header, fmt.Errorf("gitlab rejected credentials (%d): %w", resp.StatusCode, engine.ErrAuth)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return resp.Header, fmt.Errorf("gitlab rejected request (%d): %s: %w", resp.StatusCode, strings.TrimSpace(string(data)), engine.ErrValidation)
	default:
		return resp.Header, fmt.Errorf("gitlab API error %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(data)), engine.ErrConnectivity)
	}
}
