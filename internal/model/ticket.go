package model

import (
	"fmt"
	"regexp"
)

// RefKind classifies how a ticket reference was written in a description.
type RefKind string

const (
	// HashNumber covers "#123" and "Issue #123" style references.
	HashNumber RefKind = "hash_number"
	// ProjectCode covers Jira-style codes like "PROJ-123", bracketed or bare.
	ProjectCode RefKind = "project_code"
	// SimpleNumber covers a bare leading "123:" reference.
	SimpleNumber RefKind = "simple_number"
)

// TicketReference is the parsed form of a ticket mention in free text.
// Title holds the residual description with the reference token and its
// adjacent separators stripped; it never contains the matched substring.
type TicketReference struct {
	Kind       RefKind
	Identifier string
	Title      string
}

// Ticket is a unit of work in the issue tracker. Identifier is the business
// key inferred from descriptions; Ref is the tracker-internal issue number
// (GitLab IID) used for time-log and estimate writes.
type Ticket struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Ref        int    `json:"ref"`
	WebURL     string `json:"web_url,omitempty"`
}

// SyncMarkerPattern matches the duplicate-detection tag embedded in time-log
// summaries and tracking notes. A repeat run recognises an already-applied
// entry by scanning issue notes for this tag.
var SyncMarkerPattern = regexp.MustCompile(`\[TogglID:(\d+)\]`)

// SyncMarker returns the tag appended to a time-log summary for entry id.
func SyncMarker(entryID int64) string {
	return fmt.Sprintf("[TogglID:%d]", entryID)
}
