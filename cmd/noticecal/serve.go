package main

import (
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run continuously on the configured cron schedule",
	Long: `Initialize once (calendar bootstrap plus a settling sync/validate pass),
run a first refresh immediately, then keep refreshing on the configured cron
schedule (default "0 */6 * * *").

A refresh failure is logged and the daemon waits for the next tick; only
initialization errors are fatal. SIGINT or SIGTERM stops the scheduler after
any in-flight refresh finishes.

Example usage:
  noticecal serve
  NOTICECAL_SCHEDULE="0 * * * *" noticecal serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		logger := a.logs.Logger("serve")

		calendarID, err := a.orch.Init(ctx)
		if err != nil {
			return err
		}

		refresh := func() {
			if err := a.orch.Refresh(ctx, calendarID); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Printf("refresh failed: %v", err)
			}
		}

		refresh()
		if ctx.Err() != nil {
			return nil
		}

		scheduler := cron.New()
		if _, err := scheduler.AddFunc(a.cfg.Schedule, refresh); err != nil {
			return err
		}

		logger.Printf("scheduled refresh: %q", a.cfg.Schedule)
		scheduler.Start()

		<-ctx.Done()
		logger.Printf("shutting down")

		// Wait for an in-flight refresh before closing the store.
		<-scheduler.Stop().Done()

		return nil
	},
}
