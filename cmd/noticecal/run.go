package main

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform one full reconciliation cycle and exit",
	Long: `Run one cycle: settle the mirror against the remote calendar, fetch the
full notice board, enrich new and changed postings, project their schedule
windows as events, and sweep notices that disappeared upstream.

Exits non-zero on any fatal error; nothing is retried beyond the enrichment
oracle's own rate-limit backoff.

Example usage:
  noticecal run
  noticecal run --config /etc/noticecal/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.orch.Run(ctx)
	},
}
