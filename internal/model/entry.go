package model

import "time"

// TimeEntry is a single tracked span of work fetched from Toggl.
// Entries are read-only source data; the sync never mutates them.
type TimeEntry struct {
	ID              int64     `json:"id"`
	Description     string    `json:"description"`
	Start           time.Time `json:"start"`
	Stop            time.Time `json:"stop"`
	DurationSeconds int64     `json:"duration_seconds"`
	Billable        bool      `json:"billable"`
	ProjectID       int64     `json:"project_id"`
	UserID          int64     `json:"user_id"`
	Tags            []string  `json:"tags"`
}
