// noticecal mirrors Seoul youth housing notices into a Google Calendar.
//
// The board listing is fetched in full each run; changed postings pass
// through an LLM to extract application and announcement windows, which are
// projected as calendar events. A local SQLite mirror plus incremental sync
// tokens keep the remote calendar and the mirror reconciled.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dalbodeule/noticecal/internal/calendar"
	"github.com/dalbodeule/noticecal/internal/config"
	"github.com/dalbodeule/noticecal/internal/enrich"
	"github.com/dalbodeule/noticecal/internal/fetch"
	"github.com/dalbodeule/noticecal/internal/logging"
	"github.com/dalbodeule/noticecal/internal/model"
	"github.com/dalbodeule/noticecal/internal/orchestrator"
	"github.com/dalbodeule/noticecal/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "noticecal",
	Short: "Sync Seoul youth housing notices to Google Calendar",
	Long: `noticecal fetches the Seoul youth housing notice board, extracts
application and announcement schedules with an LLM, and maintains matching
events in a shared Google Calendar.

Configuration comes from config.yaml (or --config) merged with NOTICECAL_*
environment variables. The Anthropic API key may also be supplied via
ANTHROPIC_API_KEY.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ./config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs after setup.
type app struct {
	cfg   *config.Config
	logs  *logging.Factory
	store *store.Store
	orch  *orchestrator.Orchestrator
}

func (a *app) Close() {
	a.store.Close()
}

// setup loads configuration and wires the store, calendar client, fetcher,
// and enrichment pipeline into an orchestrator.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logs := logging.NewFactory(cfg.Logging)

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}

	cal, err := calendar.NewGoogleClient(ctx, cfg.Calendar.CredentialsFile, cfg.Calendar.Timezone)
	if err != nil {
		st.Close()
		return nil, err
	}

	oracle := enrich.NewAnthropicOracle(cfg.Enrich, cfg.Location(), logs.Logger("oracle"))

	memoFor := func(raw *model.RawNotice) string {
		return fmt.Sprintf("모집 공고 : %s?boardId=%d&menuNo=%s",
			cfg.Source.ViewURL, raw.ID, cfg.Source.MenuNo)
	}
	pipeline := enrich.NewPipeline(oracle, cfg.Enrich, memoFor, logs.Logger("enrich"))
	fetcher := fetch.New(cfg.Source, logs.Logger("fetch"))

	orch := orchestrator.New(cfg.Calendar, st, cal, fetcher, pipeline, logs.Logger("orchestrator"))

	return &app{cfg: cfg, logs: logs, store: st, orch: orch}, nil
}
