// Package engine reconciles Toggl time entries against GitLab issues.
//
// For each entry it applies the configured filter predicates, resolves a
// ticket reference from the description, looks up or creates the matching
// issue, and logs the normalized duration, emitting one SyncDecision per
// entry into a RunReport.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"togglsync/internal/model"
	"togglsync/internal/resolver"
	"togglsync/internal/timecalc"
)

// TimeSource fetches time entries from the tracking tool. Source-side
// filters (workspace, user, project) are the implementation's concern.
type TimeSource interface {
	FetchEntries(ctx context.Context, since, until time.Time) ([]model.TimeEntry, error)
}

// TicketStore is the issue-tracker side of a sync. FindByIdentifier returns
// (nil, nil) when no ticket matches; that is not an error.
type TicketStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*model.Ticket, error)
	CreateTicket(ctx context.Context, title string, labels []string) (model.Ticket, error)
	AppendTimeLog(ctx context.Context, ticketRef int, seconds int64, spentAt time.Time, summary string) error
	SetEstimate(ctx context.Context, ticketRef int, seconds int64) error
	// SyncedEntryIDs returns the IDs of time entries already logged on the
	// ticket, recovered from the duplicate-detection tags written by
	// AppendTimeLog summaries.
	SyncedEntryIDs(ctx context.Context, ticketRef int) (map[int64]bool, error)
}

// Options is the immutable per-run configuration.
type Options struct {
	Simulate           bool
	AutoCreateIssues   bool
	MinDurationSeconds int64
	RoundToMinutes     int
	OnlyBillable       bool
	ExcludeWeekends    bool
	ProjectID          int64 // 0 = no project filter
	MinDescriptionLen  int
	SkipGenericTerms   []string
	IssueLabels        []string
	AddTimeEstimates   bool
	EstimateMultiplier float64
	PreventDuplicates  bool
	Timezone           *time.Location // weekend predicate; nil = UTC
	Concurrency        int            // worker bound; <= 1 means sequential
}

var validRounding = map[int]bool{1: true, 5: true, 10: true, 15: true, 30: true}

// Validate reports the first configuration error. A failed validation aborts
// a run before any entry is processed.
func (o Options) Validate() error {
	if !validRounding[o.RoundToMinutes] {
		return fmt.Errorf("round_to_minutes must be one of 1, 5, 10, 15, 30 (got %d)", o.RoundToMinutes)
	}
	if o.MinDurationSeconds < 0 {
		return fmt.Errorf("min_duration_seconds must be >= 0 (got %d)", o.MinDurationSeconds)
	}
	if o.AddTimeEstimates && o.EstimateMultiplier <= 0 {
		return fmt.Errorf("estimate_multiplier must be > 0 (got %g)", o.EstimateMultiplier)
	}
	return nil
}

// ticketState serializes lookup and creation for one identifier within a
// run, so entries sharing an identifier never race into duplicate tickets.
type ticketState struct {
	mu     sync.Mutex
	looked bool
	found  bool
	ticket model.Ticket
	synced map[int64]bool // entry IDs already logged on the ticket
}

// Engine runs reconciliations against a TicketStore.
type Engine struct {
	store TicketStore
	opts  Options
	log   zerolog.Logger

	mu      sync.Mutex
	tickets map[string]*ticketState
}

// New validates opts and returns an Engine.
func New(store TicketStore, opts Options, log zerolog.Logger) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sync options: %w", err)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Engine{
		store:   store,
		opts:    opts,
		log:     log,
		tickets: make(map[string]*ticketState),
	}, nil
}

// Reconcile processes all entries and returns the aggregated report.
// Per-entry failures are recorded in the report and never abort the run;
// the returned error is reserved for context cancellation.
func (e *Engine) Reconcile(ctx context.Context, entries []model.TimeEntry) (*model.RunReport, error) {
	report := model.NewRunReport(uuid.NewString())
	e.log.Info().
		Str("run_id", report.RunID).
		Int("entries", len(entries)).
		Bool("simulate", e.opts.Simulate).
		Msg("starting reconciliation")

	results := make([]entryResult, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			results[i] = e.processEntry(gctx, entry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	// Fold in input order so the report is deterministic regardless of how
	// the workers interleaved.
	for i, entry := range entries {
		report.Add(results[i].decision, entry.Billable)
		report.Errors = append(report.Errors, results[i].errs...)
		if results[i].estimateSet {
			report.EstimatesSet++
		}
	}

	e.log.Info().
		Str("run_id", report.RunID).
		Int("matched", report.Matched).
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Str("total", timecalc.FormatDuration(report.TotalSeconds)).
		Msg("reconciliation finished")
	// The group context is cancelled by Wait on every return; only the
	// caller's context decides whether the run was cut short.
	return report, ctx.Err()
}

// entryResult is the per-entry outcome handed back to Reconcile's fold.
type entryResult struct {
	decision    model.SyncDecision
	estimateSet bool
	errs        []model.EntryError
}

// processEntry runs the full decision procedure for one entry.
func (e *Engine) processEntry(ctx context.Context, entry model.TimeEntry) entryResult {
	log := e.log.With().Int64("entry_id", entry.ID).Logger()

	if reason, ok := e.filter(entry); !ok {
		log.Debug().Str("reason", string(reason)).Msg("entry filtered")
		return skipped(entry, reason)
	}

	seconds := timecalc.RoundDuration(entry.DurationSeconds, e.opts.RoundToMinutes)

	ref, hasRef := resolver.Resolve(entry.Description)
	var identifier, title string
	if hasRef {
		identifier = ref.Identifier
		title = ref.Title
	} else {
		if !e.opts.AutoCreateIssues {
			return skipped(entry, model.ReasonNoReference)
		}
		title = strings.Join(strings.Fields(entry.Description), " ")
		if e.tooGenericOrShort(title) {
			return skipped(entry, model.ReasonGenericOrShort)
		}
	}

	st := e.stateFor(identifier, title)
	st.mu.Lock()
	defer st.mu.Unlock()

	created := false
	if !st.looked {
		// Entries without a resolved reference look up by prospective title,
		// so a ticket auto-created on an earlier run is found again instead
		// of being created twice.
		lookupKey := identifier
		if lookupKey == "" {
			lookupKey = title
		}
		ticket, err := e.store.FindByIdentifier(ctx, lookupKey)
		if err != nil {
			return e.entryError(entry, log, "looking up ticket", err)
		}
		if ticket != nil {
			st.found = true
			st.ticket = *ticket
		}
		st.looked = true
	}

	if !st.found {
		if !e.opts.AutoCreateIssues {
			return skipped(entry, model.ReasonNotFound)
		}
		if e.tooGenericOrShort(title) {
			return skipped(entry, model.ReasonGenericOrShort)
		}
		if e.opts.Simulate {
			log.Info().Str("title", title).Msg("would create ticket")
			st.found = true
			st.ticket = model.Ticket{Identifier: identifier, Title: title}
			st.synced = map[int64]bool{}
		} else {
			ticket, err := e.store.CreateTicket(ctx, title, e.opts.IssueLabels)
			if err != nil {
				return e.entryError(entry, log, "creating ticket", err)
			}
			log.Info().Int("ticket_ref", ticket.Ref).Str("title", title).Msg("created ticket")
			st.found = true
			st.ticket = ticket
			st.synced = map[int64]bool{}
		}
		created = true
	}

	if e.opts.PreventDuplicates {
		if st.synced == nil {
			ids, err := e.store.SyncedEntryIDs(ctx, st.ticket.Ref)
			if err != nil {
				// Duplicate check is best-effort; a failed scan must not
				// block the run.
				log.Warn().Err(err).Int("ticket_ref", st.ticket.Ref).Msg("could not fetch synced entry IDs")
				ids = map[int64]bool{}
			}
			st.synced = ids
		}
		if st.synced[entry.ID] {
			log.Debug().Int("ticket_ref", st.ticket.Ref).Msg("entry already synced")
			return skipped(entry, model.ReasonAlreadySynced)
		}
	}

	outcome := model.Matched
	if created {
		outcome = model.Created
	}
	decision := model.SyncDecision{
		EntryID:   entry.ID,
		Outcome:   outcome,
		TicketRef: st.ticket.Ref,
		Seconds:   seconds,
	}

	if e.opts.Simulate {
		log.Info().
			Str("outcome", string(outcome)).
			Int("ticket_ref", st.ticket.Ref).
			Str("duration", timecalc.FormatDuration(seconds)).
			Msg("would log time")
		return entryResult{decision: decision}
	}

	summary := e.logSummary(entry, seconds)
	if err := e.store.AppendTimeLog(ctx, st.ticket.Ref, seconds, entry.Start, summary); err != nil {
		return e.entryError(entry, log, "logging time", err)
	}
	if e.opts.PreventDuplicates {
		st.synced[entry.ID] = true
	}
	log.Info().
		Int("ticket_ref", st.ticket.Ref).
		Str("duration", timecalc.FormatDuration(seconds)).
		Msg("time logged")

	res := entryResult{decision: decision}
	if created && e.opts.AddTimeEstimates {
		estimate := int64(float64(seconds) * e.opts.EstimateMultiplier)
		if err := e.store.SetEstimate(ctx, st.ticket.Ref, estimate); err != nil {
			// The time log is already applied; keep the decision and record
			// the estimate failure on the side.
			log.Warn().Err(err).Msg("could not set time estimate")
			res.errs = append(res.errs, model.EntryError{EntryID: entry.ID, Message: fmt.Sprintf("setting estimate: %v", err)})
		} else {
			res.estimateSet = true
		}
	}
	return res
}

// filter evaluates the independent skip predicates in their fixed order.
func (e *Engine) filter(entry model.TimeEntry) (model.SkipReason, bool) {
	if entry.DurationSeconds < e.opts.MinDurationSeconds {
		return model.ReasonTooShort, false
	}
	if e.opts.OnlyBillable && !entry.Billable {
		return model.ReasonNotBillable, false
	}
	if e.opts.ExcludeWeekends && timecalc.IsWeekend(entry.Start, e.opts.Timezone) {
		return model.ReasonWeekend, false
	}
	if e.opts.ProjectID != 0 && entry.ProjectID != e.opts.ProjectID {
		return model.ReasonProjectFilter, false
	}
	return "", true
}

// tooGenericOrShort applies the issue-creation guard: titles below the
// minimum length, or whose lowercased trimmed form is a configured generic
// term, never become new tickets.
func (e *Engine) tooGenericOrShort(title string) bool {
	trimmed := strings.TrimSpace(title)
	if utf8.RuneCountInString(trimmed) < e.opts.MinDescriptionLen {
		return true
	}
	lowered := strings.ToLower(trimmed)
	for _, term := range e.opts.SkipGenericTerms {
		if lowered == term {
			return true
		}
	}
	return false
}

// stateFor returns the shared per-identifier state, keyed by identifier
// when one was resolved and by title otherwise, mirroring how entries
// without a reference group by prospective issue title.
func (e *Engine) stateFor(identifier, title string) *ticketState {
	key := identifier
	if key == "" {
		key = "title:" + strings.ToLower(title)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.tickets[key]
	if !ok {
		st = &ticketState{}
		e.tickets[key] = st
	}
	return st
}

// logSummary builds the time-log summary, ending with the duplicate
// detection tag when enabled.
func (e *Engine) logSummary(entry model.TimeEntry, seconds int64) string {
	parts := []string{"Toggl: " + entry.Description}
	if len(entry.Tags) > 0 {
		parts = append(parts, "[Tags: "+strings.Join(entry.Tags, ", ")+"]")
	}
	if entry.Billable {
		parts = append(parts, "[Billable]")
	}
	if entry.DurationSeconds != seconds {
		parts = append(parts, fmt.Sprintf("[Rounded: %s to %s]",
			timecalc.FormatDuration(entry.DurationSeconds), timecalc.FormatDuration(seconds)))
	}
	if e.opts.PreventDuplicates {
		parts = append(parts, model.SyncMarker(entry.ID))
	}
	return strings.Join(parts, " ")
}

func (e *Engine) entryError(entry model.TimeEntry, log zerolog.Logger, op string, err error) entryResult {
	log.Error().Err(err).Msg(op + " failed")
	res := skipped(entry, model.ReasonError)
	res.errs = []model.EntryError{{EntryID: entry.ID, Message: fmt.Sprintf("%s: %v", op, err)}}
	return res
}

func skipped(entry model.TimeEntry, reason model.SkipReason) entryResult {
	return entryResult{decision: model.SyncDecision{EntryID: entry.ID, Outcome: model.Skipped, Reason: reason}}
}
