package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"togglsync/internal/config"
	"togglsync/internal/engine"
	"togglsync/internal/gitlab"
	"togglsync/internal/model"
	"togglsync/internal/timecalc"
	"togglsync/internal/toggl"
)

var (
	syncDryRun       bool
	syncDays         int
	syncProjectID    int64
	syncBillableOnly bool
	syncNoWeekends   bool
	syncMinDuration  int64
	syncRoundTo      int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync Toggl time entries to GitLab issues",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Compute decisions without writing to GitLab")
	syncCmd.Flags().IntVar(&syncDays, "days", 0, "How many days back to sync (default from config)")
	syncCmd.Flags().Int64Var(&syncProjectID, "project-id", 0, "Only sync entries from this Toggl project")
	syncCmd.Flags().BoolVar(&syncBillableOnly, "billable-only", false, "Only sync billable entries")
	syncCmd.Flags().BoolVar(&syncNoWeekends, "no-weekends", false, "Skip entries started on weekends")
	syncCmd.Flags().Int64Var(&syncMinDuration, "min-duration", 0, "Minimum entry duration in seconds")
	syncCmd.Flags().IntVar(&syncRoundTo, "round-to", 0, "Round logged time to 1, 5, 10, 15 or 30 minutes")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	applySyncFlags(cmd, &cfg)

	report, err := runOnce(cmd.Context(), cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	printSummary(report, cfg.Sync.DryRun)
	if len(report.Errors) > 0 {
		os.Exit(1)
	}
	return nil
}

// applySyncFlags overlays explicitly set flags onto the loaded config.
func applySyncFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("dry-run") {
		cfg.Sync.DryRun = syncDryRun
	}
	if cmd.Flags().Changed("days") {
		cfg.Sync.DaysBack = syncDays
	}
	if cmd.Flags().Changed("project-id") {
		cfg.Toggl.ProjectID = syncProjectID
	}
	if cmd.Flags().Changed("billable-only") {
		cfg.Sync.OnlyBillable = syncBillableOnly
	}
	if cmd.Flags().Changed("no-weekends") {
		cfg.Sync.ExcludeWeekends = syncNoWeekends
	}
	if cmd.Flags().Changed("min-duration") {
		cfg.Sync.MinDurationSeconds = syncMinDuration
	}
	if cmd.Flags().Changed("round-to") {
		cfg.Sync.RoundToMinutes = syncRoundTo
	}
}

// runOnce executes a full fetch-reconcile cycle. Shared by sync and serve.
func runOnce(ctx context.Context, cfg config.Config, log zerolog.Logger) (*model.RunReport, error) {
	// The project filter runs in the engine so filtered entries show up in
	// the report; only the user filter narrows the fetch itself.
	var togglOpts []toggl.Option
	if cfg.Toggl.UserID != 0 {
		togglOpts = append(togglOpts, toggl.WithUserFilter(cfg.Toggl.UserID))
	}
	source := toggl.NewClient(cfg.Toggl.APIToken, cfg.Toggl.WorkspaceID, log, togglOpts...)

	var gitlabOpts []gitlab.Option
	if cfg.GitLab.TokenType == "oauth" {
		gitlabOpts = append(gitlabOpts, gitlab.WithOAuthToken())
	}
	store := gitlab.NewClient(ctx, cfg.GitLab.URL, cfg.GitLab.Token, cfg.GitLab.ProjectID, log, gitlabOpts...)

	eng, err := engine.New(store, engineOptions(cfg), log)
	if err != nil {
		return nil, err
	}

	since, until := timecalc.SyncWindow(time.Now(), cfg.Sync.DaysBack)
	log.Info().
		Time("since", since).
		Time("until", until).
		Bool("dry_run", cfg.Sync.DryRun).
		Msg("starting sync")

	entries, err := source.FetchEntries(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("fetching time entries: %w", err)
	}
	log.Info().Int("entries", len(entries)).Msg("fetched time entries")

	return eng.Reconcile(ctx, entries)
}

func engineOptions(cfg config.Config) engine.Options {
	return engine.Options{
		Simulate:           cfg.Sync.DryRun,
		AutoCreateIssues:   cfg.Issues.AutoCreate,
		MinDurationSeconds: cfg.Sync.MinDurationSeconds,
		RoundToMinutes:     cfg.Sync.RoundToMinutes,
		OnlyBillable:       cfg.Sync.OnlyBillable,
		ExcludeWeekends:    cfg.Sync.ExcludeWeekends,
		ProjectID:          cfg.Toggl.ProjectID,
		MinDescriptionLen:  cfg.Issues.MinDescriptionLen,
		SkipGenericTerms:   cfg.Issues.SkipGenericTerms,
		IssueLabels:        cfg.Issues.Labels,
		AddTimeEstimates:   cfg.Issues.AddTimeEstimates,
		EstimateMultiplier: cfg.Issues.EstimateMultiplier,
		PreventDuplicates:  cfg.Sync.PreventDuplicates,
		Timezone:           cfg.Location(),
		Concurrency:        cfg.Sync.Concurrency,
	}
}

func printSummary(report *model.RunReport, dryRun bool) {
	dryTag := ""
	if dryRun {
		dryTag = " [dry-run]"
	}
	fmt.Println()
	fmt.Printf("Summary%s:\n", dryTag)
	fmt.Printf("  %d processed\n", report.Processed)
	fmt.Printf("  %d matched\n", report.Matched)
	fmt.Printf("  %d created\n", report.Created)
	fmt.Printf("  %d skipped\n", report.Skipped)

	reasons := make([]string, 0, len(report.SkipReasons))
	for r := range report.SkipReasons {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("      %s: %d\n", r, report.SkipReasons[model.SkipReason(r)])
	}

	fmt.Printf("  %s synced (%s billable)\n",
		timecalc.FormatDuration(report.TotalSeconds),
		timecalc.FormatDuration(report.BillableSeconds))
	if report.EstimatesSet > 0 {
		fmt.Printf("  %d estimates set\n", report.EstimatesSet)
	}
	if len(report.Errors) > 0 {
		fmt.Printf("  %d errors\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Printf("      entry %d: %s\n", e.EntryID, e.Message)
		}
	}
}
