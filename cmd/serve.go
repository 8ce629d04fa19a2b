package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var (
	serveSchedule  string
	serveImmediate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run sync on a cron schedule until interrupted",
	Long: `serve runs the sync cycle on a cron schedule (standard 5-field syntax,
minute hour dom month dow). A tick is skipped when the previous run is
still in flight. Stop with SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", "Cron schedule (default from config)")
	serveCmd.Flags().BoolVar(&serveImmediate, "immediate", false, "Run one sync immediately on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if serveSchedule != "" {
		cfg.Sync.Schedule = serveSchedule
	}

	parser := scheduleParser()
	if _, err := parser.Parse(cfg.Sync.Schedule); err != nil {
		fmt.Fprintf(os.Stderr, "invalid schedule %q: %v\n", cfg.Sync.Schedule, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var inFlight atomic.Bool
	runTick := func() {
		if !runGuarded(&inFlight, func() {
			report, err := runOnce(ctx, cfg, log)
			if err != nil {
				log.Error().Err(err).Msg("sync run failed")
				return
			}
			log.Info().
				Str("run_id", report.RunID).
				Int("processed", report.Processed).
				Int("matched", report.Matched).
				Int("created", report.Created).
				Int("skipped", report.Skipped).
				Int("errors", len(report.Errors)).
				Msg("sync run finished")
		}) {
			log.Warn().Msg("previous sync still running, skipping tick")
		}
	}

	c := cron.New(cron.WithParser(parser), cron.WithLocation(cfg.Location()))
	if _, err := c.AddFunc(cfg.Sync.Schedule, runTick); err != nil {
		fmt.Fprintf(os.Stderr, "scheduling sync: %v\n", err)
		os.Exit(2)
	}

	log.Info().Str("schedule", cfg.Sync.Schedule).Msg("scheduler started")
	c.Start()
	if serveImmediate {
		go runTick()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	<-c.Stop().Done()
	return nil
}

// scheduleParser is the standard 5-field (minute hour dom month dow) parser
// used both to validate the configured schedule and to drive the cron runner.
func scheduleParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

// runGuarded executes run unless busy is already held, reporting whether the
// run happened. Overlapping ticks are dropped, not queued.
func runGuarded(busy *atomic.Bool, run func()) bool {
	if !busy.CompareAndSwap(false, true) {
		return false
	}
	defer busy.Store(false)
	run()
	return true
}
