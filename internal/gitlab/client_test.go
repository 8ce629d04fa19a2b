package gitlab_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"togglsync/internal/engine"
	"togglsync/internal/gitlab"
)

func newTestClient(t *testing.T, handler http.Handler) (*gitlab.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := gitlab.NewClient(context.Background(), srv.URL, "glpat-test", 99, zerolog.Nop())
	return c, srv
}

func TestFindByIdentifierIIDHit(t *testing.T) {
	var gotToken string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("PRIVATE-TOKEN")
		if r.URL.Path != "/api/v4/projects/99/issues/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"id": 1, "iid": 42, "title": "Fix login bug", "state": "opened"}`)
	}))

	ticket, err := c.FindByIdentifier(context.Background(), "42")
	if err != nil {
		t.Fatalf("FindByIdentifier: %v", err)
	}
	if ticket == nil || ticket.Ref != 42 || ticket.Title != "Fix login bug" {
		t.Errorf("ticket = %+v", ticket)
	}
	if ticket.Identifier != "42" {
		t.Errorf("Identifier = %q, want %q", ticket.Identifier, "42")
	}
	if gotToken != "glpat-test" {
		t.Errorf("PRIVATE-TOKEN = %q", gotToken)
	}
}

func TestFindByIdentifierSearchFallback(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v4/projects/99/issues" && r.URL.Query().Get("in") == "title":
			if got := r.URL.Query().Get("search"); got != "PROJ-123" {
				t.Errorf("search = %q", got)
			}
			fmt.Fprint(w, `[{"id": 2, "iid": 7, "title": "PROJ-123 dashboard", "state": "opened"}]`)
		default:
			http.NotFound(w, r)
		}
	}))

	ticket, err := c.FindByIdentifier(context.Background(), "PROJ-123")
	if err != nil {
		t.Fatalf("FindByIdentifier: %v", err)
	}
	if ticket == nil || ticket.Ref != 7 {
		t.Errorf("ticket = %+v", ticket)
	}
}

func TestFindByIdentifierNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v4/projects/99/issues" {
			fmt.Fprint(w, `[]`)
			return
		}
		http.NotFound(w, r)
	}))

	ticket, err := c.FindByIdentifier(context.Background(), "42")
	if err != nil {
		t.Fatalf("FindByIdentifier: %v", err)
	}
	if ticket != nil {
		t.Errorf("ticket = %+v, want nil", ticket)
	}
}

func TestCreateTicket(t *testing.T) {
	var gotPayload map[string]string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v4/projects/99/issues" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 3, "iid": 55, "title": "ship the billing report", "state": "opened"}`)
	}))

	ticket, err := c.CreateTicket(context.Background(), "ship the billing report", []string{"toggl-sync", "auto"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Ref != 55 {
		t.Errorf("Ref = %d, want 55", ticket.Ref)
	}
	if gotPayload["title"] != "ship the billing report" {
		t.Errorf("title = %q", gotPayload["title"])
	}
	if gotPayload["labels"] != "toggl-sync,auto" {
		t.Errorf("labels = %q", gotPayload["labels"])
	}
}

func TestCreateTicketValidationError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": {"title": ["can't be blank"]}}`, http.StatusUnprocessableEntity)
	}))

	_, err := c.CreateTicket(context.Background(), "", nil)
	if !errors.Is(err, engine.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestAppendTimeLog(t *testing.T) {
	var spent map[string]string
	var noteBody string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/projects/99/issues/55/add_spent_time":
			if err := json.NewDecoder(r.Body).Decode(&spent); err != nil {
				t.Fatalf("decode: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{}`)
		case "/api/v4/projects/99/issues/55/notes":
			var p map[string]string
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				t.Fatalf("decode note: %v", err)
			}
			noteBody = p["body"]
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	spentAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	err := c.AppendTimeLog(context.Background(), 55, 5400, spentAt, "Toggl: #42 work [TogglID:77]")
	if err != nil {
		t.Fatalf("AppendTimeLog: %v", err)
	}
	if spent["duration"] != "1h 30m" {
		t.Errorf("duration = %q, want %q", spent["duration"], "1h 30m")
	}
	if spent["spent_at"] != "2026-03-02" {
		t.Errorf("spent_at = %q", spent["spent_at"])
	}
	if !strings.Contains(noteBody, "[TogglID:77]") {
		t.Errorf("tracking note = %q, want TogglID 77 marker", noteBody)
	}
}

func TestSyncedEntryIDsPaginated(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/projects/99/issues/55/notes" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("page") {
		case "1":
			w.Header().Set("X-Next-Page", "2")
			fmt.Fprint(w, `[
				{"id": 1, "body": "Time logged: 15m on 2026-03-02 - Toggl: fix [TogglID:101]"},
				{"id": 2, "body": "unrelated discussion"}
			]`)
		case "2":
			w.Header().Set("X-Next-Page", "")
			fmt.Fprint(w, `[{"id": 3, "body": "Time logged: 1h on 2026-03-03 - Toggl: more [TogglID:202]"}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))

	ids, err := c.SyncedEntryIDs(context.Background(), 55)
	if err != nil {
		t.Fatalf("SyncedEntryIDs: %v", err)
	}
	if len(ids) != 2 || !ids[101] || !ids[202] {
		t.Errorf("ids = %v, want {101, 202}", ids)
	}
}

func TestSetEstimate(t *testing.T) {
	var payload map[string]string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/projects/99/issues/55/time_estimate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		fmt.Fprint(w, `{}`)
	}))

	if err := c.SetEstimate(context.Background(), 55, 8100); err != nil {
		t.Fatalf("SetEstimate: %v", err)
	}
	if payload["duration"] != "2h 15m" {
		t.Errorf("duration = %q, want %q", payload["duration"], "2h 15m")
	}
}

func TestAuthError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "401 Unauthorized"}`, http.StatusUnauthorized)
	}))

	_, err := c.CurrentUser(context.Background())
	if !errors.Is(err, engine.ErrAuth) {
		t.Errorf("err = %v, want ErrAuth", err)
	}
}
