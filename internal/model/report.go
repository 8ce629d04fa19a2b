package model

// Outcome is the decision kind for one time entry.
type Outcome string

const (
	Skipped Outcome = "skipped"
	Matched Outcome = "matched"
	Created Outcome = "created"
)

// SkipReason explains why an entry was not applied.
type SkipReason string

const (
	ReasonTooShort       SkipReason = "too_short"
	ReasonNotBillable    SkipReason = "not_billable"
	ReasonWeekend        SkipReason = "weekend"
	ReasonProjectFilter  SkipReason = "project_filtered"
	ReasonNoReference    SkipReason = "no_reference"
	ReasonNotFound       SkipReason = "not_found"
	ReasonGenericOrShort SkipReason = "generic_or_short"
	ReasonAlreadySynced  SkipReason = "already_synced"
	ReasonError          SkipReason = "error"
)

// SyncDecision is the outcome for a single time entry. Seconds is the
// normalized duration actually applied; zero when the entry was skipped.
type SyncDecision struct {
	EntryID   int64
	Outcome   Outcome
	Reason    SkipReason // set only when Outcome == Skipped
	TicketRef int        // set for Matched/Created (0 in simulate-created decisions)
	Seconds   int64
}

// EntryError records a non-fatal per-entry failure.
type EntryError struct {
	EntryID int64
	Message string
}

// RunReport aggregates one reconciliation run. Decisions are kept in input
// order so repeated runs over identical input compare deterministically.
type RunReport struct {
	RunID           string
	Processed       int
	Matched         int
	Created         int
	Skipped         int
	SkipReasons     map[SkipReason]int
	TotalSeconds    int64
	BillableSeconds int64
	EstimatesSet    int
	Errors          []EntryError
	Decisions       []SyncDecision
}

// NewRunReport returns an empty report with the given run ID.
func NewRunReport(runID string) *RunReport {
	return &RunReport{
		RunID:       runID,
		SkipReasons: make(map[SkipReason]int),
	}
}

// Add folds one decision into the report counters.
func (r *RunReport) Add(d SyncDecision, billable bool) {
	r.Processed++
	r.Decisions = append(r.Decisions, d)
	switch d.Outcome {
	case Skipped:
		r.Skipped++
		r.SkipReasons[d.Reason]++
	case Matched:
		r.Matched++
	case Created:
		r.Created++
	}
	if d.Outcome != Skipped {
		r.TotalSeconds += d.Seconds
		if billable {
			r.BillableSeconds += d.Seconds
		}
	}
}
