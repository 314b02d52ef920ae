package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/tweetrelay/internal/config"
	"github.com/ppiankov/tweetrelay/internal/schedule"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll on an interval and relay new posts",
	RunE:  runAction,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rly, err := buildRelay(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cycle := func() {
		res := rly.RunOnce(ctx)
		log.Printf("[run] cycle finished: %s", res.Outcome)
	}

	sched := schedule.New()
	if err := sched.Every(cfg.Watch.Interval.Duration, cycle); err != nil {
		return err
	}

	log.Printf("[run] watching @%s every %s (delivery=%s, %d keywords)",
		cfg.Watch.Handle, cfg.Watch.Interval.Duration, cfg.Watch.Delivery, len(cfg.Watch.Keywords))

	// First cycle fires immediately; the schedule takes over after.
	cycle()

	sched.Start()
	<-ctx.Done()

	log.Printf("[run] shutting down")
	sched.Stop()
	return nil
}
