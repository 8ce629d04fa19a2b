package cmd

import (
	"testing"
	"time"

	"togglsync/internal/config"
)

func TestApplySyncFlags(t *testing.T) {
	cfg := config.Config{}
	cfg.Sync.DryRun = true
	cfg.Sync.DaysBack = 7
	cfg.Sync.RoundToMinutes = 15

	cmd := syncCmd
	for flag, value := range map[string]string{
		"dry-run":  "false",
		"days":     "14",
		"round-to": "5",
	} {
		if err := cmd.Flags().Set(flag, value); err != nil {
			t.Fatalf("setting --%s: %v", flag, err)
		}
	}
	applySyncFlags(cmd, &cfg)

	if cfg.Sync.DryRun {
		t.Error("--dry-run=false should override config")
	}
	if cfg.Sync.DaysBack != 14 {
		t.Errorf("days_back = %d, want 14", cfg.Sync.DaysBack)
	}
	if cfg.Sync.RoundToMinutes != 5 {
		t.Errorf("round_to_minutes = %d, want 5", cfg.Sync.RoundToMinutes)
	}
	// Flags never touched keep the config value.
	if cfg.Sync.MinDurationSeconds != 0 {
		t.Errorf("min_duration = %d, want untouched 0", cfg.Sync.MinDurationSeconds)
	}
}

func TestEngineOptionsFromConfig(t *testing.T) {
	cfg := config.Config{}
	cfg.Sync.DryRun = true
	cfg.Sync.MinDurationSeconds = 300
	cfg.Sync.RoundToMinutes = 15
	cfg.Sync.OnlyBillable = true
	cfg.Sync.PreventDuplicates = true
	cfg.Sync.Timezone = "UTC"
	cfg.Sync.Concurrency = 4
	cfg.Issues.AutoCreate = true
	cfg.Issues.MinDescriptionLen = 5
	cfg.Issues.Labels = []string{"toggl-sync"}
	cfg.Issues.AddTimeEstimates = true
	cfg.Issues.EstimateMultiplier = 1.5

	opts := engineOptions(cfg)

	if !opts.Simulate || !opts.AutoCreateIssues || !opts.OnlyBillable || !opts.PreventDuplicates {
		t.Errorf("boolean options not carried over: %+v", opts)
	}
	if opts.MinDurationSeconds != 300 || opts.RoundToMinutes != 15 {
		t.Errorf("duration options not carried over: %+v", opts)
	}
	if opts.EstimateMultiplier != 1.5 || !opts.AddTimeEstimates {
		t.Errorf("estimate options not carried over: %+v", opts)
	}
	if opts.Timezone == nil || opts.Timezone.String() != time.UTC.String() {
		t.Errorf("timezone = %v, want UTC", opts.Timezone)
	}
	if opts.Concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", opts.Concurrency)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("options from a valid config should validate: %v", err)
	}
}
