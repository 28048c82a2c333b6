package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dalbodeule/noticecal/internal/config"
	"github.com/dalbodeule/noticecal/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mirror statistics",
	Long: `Print the local mirror's state: the pinned calendar, whether an
incremental sync token is held, and the mirrored notice and event counts.

Example usage:
  noticecal status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.InitSchema(ctx); err != nil {
			return err
		}

		state, err := st.GetSyncState(ctx)
		if err != nil {
			return err
		}

		if state == nil {
			fmt.Println("Calendar:   not initialized (run `noticecal run` first)")
		} else {
			fmt.Printf("Calendar:   %s\n", state.CalendarID)
			if state.SyncToken != nil {
				fmt.Println("Sync token: held (incremental sync)")
			} else {
				fmt.Println("Sync token: none (next sync is a full listing)")
			}
		}

		notices, err := st.NoticeCount(ctx)
		if err != nil {
			return err
		}
		events, err := st.EventCount(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Notices:    %d\n", notices)
		fmt.Printf("Events:     %d\n", events)

		return nil
	},
}
