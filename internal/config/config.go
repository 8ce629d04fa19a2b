// Package config loads the togglsync configuration from
// ~/.togglsync/config.yaml with environment-variable overrides, so the tool
// works both as an interactive CLI and inside schedulers that only pass env.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Toggl  TogglConfig  `yaml:"toggl"`
	GitLab GitLabConfig `yaml:"gitlab"`
	Sync   SyncConfig   `yaml:"sync"`
	Issues IssuesConfig `yaml:"issues"`
	Log    LogConfig    `yaml:"log"`
}

// TogglConfig holds Toggl Track API settings.
type TogglConfig struct {
	// APIToken authenticates against api.track.toggl.com. Required.
	APIToken    string `yaml:"api_token"`
	WorkspaceID int64  `yaml:"workspace_id"`
	// ProjectID limits the sync to one Toggl project. 0 = all projects.
	ProjectID int64 `yaml:"project_id"`
	// UserID limits the sync to one Toggl user. 0 = all users.
	UserID int64 `yaml:"user_id"`
}

// GitLabConfig holds GitLab API settings.
type GitLabConfig struct {
	URL string `yaml:"url"`
	// Token is a personal access token or an OAuth access token.
	Token string `yaml:"token"`
	// TokenType is "private" (PRIVATE-TOKEN header) or "oauth" (bearer).
	TokenType string `yaml:"token_type"`
	ProjectID int64  `yaml:"project_id"`
}

// SyncConfig controls how entries are filtered and applied.
type SyncConfig struct {
	DaysBack           int    `yaml:"days_back"`
	DryRun             bool   `yaml:"dry_run"`
	MinDurationSeconds int64  `yaml:"min_duration_seconds"`
	RoundToMinutes     int    `yaml:"round_to_minutes"`
	OnlyBillable       bool   `yaml:"only_billable"`
	ExcludeWeekends    bool   `yaml:"exclude_weekends"`
	PreventDuplicates  bool   `yaml:"prevent_duplicates"`
	Timezone           string `yaml:"timezone"`
	Concurrency        int    `yaml:"concurrency"`
	Schedule           string `yaml:"schedule"`
}

// IssuesConfig controls automatic issue creation.
type IssuesConfig struct {
	AutoCreate         bool     `yaml:"auto_create"`
	MinDescriptionLen  int      `yaml:"min_description_length"`
	SkipGenericTerms   []string `yaml:"skip_generic_terms"`
	Labels             []string `yaml:"labels"`
	AddTimeEstimates   bool     `yaml:"add_time_estimates"`
	EstimateMultiplier float64  `yaml:"estimate_multiplier"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default values applied for zero-value fields after loading.
const (
	DefaultGitLabURL      = "https://gitlab.com"
	DefaultDaysBack       = 7
	DefaultMinDuration    = 300
	DefaultRoundTo        = 15
	DefaultMinDescLen     = 5
	DefaultEstimateFactor = 1.5
	DefaultConcurrency    = 4
	DefaultSchedule       = "0 * * * *"
	DefaultLogLevel       = "info"
)

// DefaultGenericTerms are descriptions that never become issues on their own.
var DefaultGenericTerms = []string{"meeting", "break", "lunch", "admin", "misc", "other", "call"}

// DefaultLabels are attached to auto-created issues.
var DefaultLabels = []string{"toggl-sync"}

func defaultConfig() Config {
	return Config{
		GitLab: GitLabConfig{URL: DefaultGitLabURL, TokenType: "private"},
		Sync: SyncConfig{
			DaysBack:           DefaultDaysBack,
			DryRun:             true,
			MinDurationSeconds: DefaultMinDuration,
			RoundToMinutes:     DefaultRoundTo,
			PreventDuplicates:  true,
			Timezone:           "UTC",
			Concurrency:        DefaultConcurrency,
			Schedule:           DefaultSchedule,
		},
		Issues: IssuesConfig{
			AutoCreate:         true,
			MinDescriptionLen:  DefaultMinDescLen,
			SkipGenericTerms:   DefaultGenericTerms,
			Labels:             DefaultLabels,
			EstimateMultiplier: DefaultEstimateFactor,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// configTemplate is the annotated config written on first run.
const configTemplate = `# togglsync configuration - ~/.togglsync/config.yaml
#
# Credentials can also be supplied via environment variables
# (TOGGL_API_TOKEN, TOGGL_WORKSPACE_ID, GITLAB_TOKEN, GITLAB_PROJECT_ID, ...),
# which take precedence over this file.

toggl:
  # API token from https://track.toggl.com/profile (required).
  api_token: ""
  workspace_id: 0
  # Limit the sync to one Toggl project or user (0 = all).
  project_id: 0
  user_id: 0

gitlab:
  url: "https://gitlab.com"
  # Personal access token with "api" scope, or an OAuth access token.
  token: ""
  # "private" for PRIVATE-TOKEN auth, "oauth" for bearer auth.
  token_type: "private"
  project_id: 0

sync:
  # How many days back to fetch time entries.
  days_back: 7
  # Compute decisions without writing anything to GitLab.
  dry_run: true
  # Entries shorter than this many seconds are skipped.
  min_duration_seconds: 300
  # Round logged time to the nearest 1, 5, 10, 15 or 30 minutes.
  round_to_minutes: 15
  only_billable: false
  exclude_weekends: false
  # Tag time logs so repeat runs never double-book the same entry.
  prevent_duplicates: true
  # IANA timezone for the weekend filter, e.g. "Europe/Berlin".
  timezone: "UTC"
  # Entries processed in parallel per run.
  concurrency: 4
  # Cron schedule used by "togglsync serve" (minute hour dom month dow).
  schedule: "0 * * * *"

issues:
  # Create a GitLab issue when no existing one matches.
  auto_create: true
  # Descriptions shorter than this never become issues.
  min_description_length: 5
  # Lowercased descriptions equal to one of these terms never become issues.
  skip_generic_terms: [meeting, break, lunch, admin, misc, other, call]
  labels: [toggl-sync]
  # Set a time estimate on created issues (logged time x multiplier).
  add_time_estimates: false
  estimate_multiplier: 1.5

log:
  # trace, debug, info, warn or error.
  level: "info"
`

// Path returns the config file location, honoring TOGGLSYNC_CONFIG.
func Path() (string, error) {
	if p := os.Getenv("TOGGLSYNC_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".togglsync", "config.yaml"), nil
}

// Load reads the config file, creating it with annotated defaults on first
// run, then applies environment overrides and fills zero-value fields with
// defaults.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return defaultConfig(), err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFile reads a specific config file without env overrides applied.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		return defaultConfig(), nil
	}
	if err != nil {
		return defaultConfig(), fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}
	return cfg, nil
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// applyEnv overlays environment variables onto the loaded config. Variable
// names match the original deployment's .env contract.
func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int64, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true")
		}
	}

	setStr(&c.Toggl.APIToken, "TOGGL_API_TOKEN")
	setInt(&c.Toggl.WorkspaceID, "TOGGL_WORKSPACE_ID")
	setInt(&c.Toggl.ProjectID, "TOGGL_PROJECT_ID")
	setInt(&c.Toggl.UserID, "TOGGL_USER_ID")

	setStr(&c.GitLab.URL, "GITLAB_URL")
	setStr(&c.GitLab.Token, "GITLAB_TOKEN")
	setInt(&c.GitLab.ProjectID, "GITLAB_PROJECT_ID")

	setBool(&c.Sync.DryRun, "DRY_RUN")
	setBool(&c.Sync.OnlyBillable, "SYNC_ONLY_BILLABLE")
	setBool(&c.Sync.ExcludeWeekends, "EXCLUDE_WEEKENDS")
	setBool(&c.Sync.PreventDuplicates, "PREVENT_DUPLICATES")
	setBool(&c.Issues.AutoCreate, "AUTO_CREATE_ISSUES")
	setBool(&c.Issues.AddTimeEstimates, "ADD_TIME_ESTIMATES")
	setStr(&c.Sync.Timezone, "TIME_ZONE")
	setStr(&c.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("SYNC_DAYS_BACK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.DaysBack = n
		}
	}
	if v := os.Getenv("MINIMUM_DURATION"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Sync.MinDurationSeconds = n
		}
	}
	if v := os.Getenv("ROUND_TIME_TO_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.RoundToMinutes = n
		}
	}
	if v := os.Getenv("SKIP_GENERIC_TERMS"); v != "" {
		c.Issues.SkipGenericTerms = splitList(v)
	}
	if v := os.Getenv("ISSUE_LABELS"); v != "" {
		c.Issues.Labels = splitList(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.GitLab.URL == "" {
		c.GitLab.URL = DefaultGitLabURL
	}
	if c.GitLab.TokenType == "" {
		c.GitLab.TokenType = "private"
	}
	if c.Sync.DaysBack == 0 {
		c.Sync.DaysBack = DefaultDaysBack
	}
	if c.Sync.RoundToMinutes == 0 {
		c.Sync.RoundToMinutes = DefaultRoundTo
	}
	if c.Sync.Concurrency == 0 {
		c.Sync.Concurrency = DefaultConcurrency
	}
	if c.Sync.Schedule == "" {
		c.Sync.Schedule = DefaultSchedule
	}
	if c.Sync.Timezone == "" {
		c.Sync.Timezone = "UTC"
	}
	if c.Issues.EstimateMultiplier == 0 {
		c.Issues.EstimateMultiplier = DefaultEstimateFactor
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate reports the first fatal configuration problem. It covers the
// settings a run cannot start without; per-run option validation lives in
// the engine.
func (c *Config) Validate() error {
	var missing []string
	if c.Toggl.APIToken == "" {
		missing = append(missing, "toggl.api_token")
	}
	if c.Toggl.WorkspaceID == 0 {
		missing = append(missing, "toggl.workspace_id")
	}
	if c.GitLab.Token == "" {
		missing = append(missing, "gitlab.token")
	}
	if c.GitLab.ProjectID == 0 {
		missing = append(missing, "gitlab.project_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.GitLab.TokenType != "private" && c.GitLab.TokenType != "oauth" {
		return fmt.Errorf("gitlab.token_type must be \"private\" or \"oauth\" (got %q)", c.GitLab.TokenType)
	}
	if c.Sync.DaysBack <= 0 {
		return fmt.Errorf("sync.days_back must be greater than 0 (got %d)", c.Sync.DaysBack)
	}
	if c.Sync.MinDurationSeconds < 0 {
		return fmt.Errorf("sync.min_duration_seconds must be >= 0 (got %d)", c.Sync.MinDurationSeconds)
	}
	switch c.Sync.RoundToMinutes {
	case 1, 5, 10, 15, 30:
	default:
		return fmt.Errorf("sync.round_to_minutes must be one of 1, 5, 10, 15, 30 (got %d)", c.Sync.RoundToMinutes)
	}
	if c.Issues.AddTimeEstimates && c.Issues.EstimateMultiplier <= 0 {
		return fmt.Errorf("issues.estimate_multiplier must be > 0 (got %g)", c.Issues.EstimateMultiplier)
	}
	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("sync.timezone %q is not a valid IANA timezone: %w", c.Sync.Timezone, err)
	}
	return nil
}

// Location returns the configured timezone. Call Validate first; an invalid
// timezone falls back to UTC here.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
