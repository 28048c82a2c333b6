// Package orchestrator drives the full reconciliation run: bootstrap, sync,
// validation, fetch, enrichment, projection, and the delete sweep.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dalbodeule/noticecal/internal/calendar"
	"github.com/dalbodeule/noticecal/internal/config"
	"github.com/dalbodeule/noticecal/internal/fingerprint"
	"github.com/dalbodeule/noticecal/internal/model"
	"github.com/dalbodeule/noticecal/internal/projector"
	"github.com/dalbodeule/noticecal/internal/store"
	"github.com/dalbodeule/noticecal/internal/syncer"
	"github.com/dalbodeule/noticecal/internal/validator"
)

// ErrAmbiguousState reports more than one sync state row or more than one
// candidate calendar; both need an operator, not a guess.
var ErrAmbiguousState = errors.New("orchestrator: ambiguous persistent state")

// Fetcher supplies the full current upstream notice set.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]*model.RawNotice, error)
}

// Enricher derives one notice per raw input.
type Enricher interface {
	Run(ctx context.Context, raws []*model.RawNotice) ([]*model.Notice, error)
}

// Orchestrator owns the run sequence.
type Orchestrator struct {
	cfg      config.CalendarConfig
	store    *store.Store
	cal      calendar.Client
	fetcher  Fetcher
	enricher Enricher
	logger   *log.Logger
}

// New assembles an orchestrator.
func New(cfg config.CalendarConfig, st *store.Store, cal calendar.Client, fetcher Fetcher, enricher Enricher, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    st,
		cal:      cal,
		fetcher:  fetcher,
		enricher: enricher,
		logger:   logger,
	}
}

// Init resolves the working calendar, creating and sharing one on first run,
// and pins it in the sync state. It then settles the mirror: sync, one
// validation pass, and a second sync to absorb the validator's own remote
// writes. Returns the calendar id for subsequent refreshes.
func (o *Orchestrator) Init(ctx context.Context) (string, error) {
	count, err := o.store.SyncStateCount(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count sync state: %w", err)
	}
	if count > 1 {
		return "", fmt.Errorf("%w: %d sync state rows", ErrAmbiguousState, count)
	}

	if count == 0 {
		calendarID, err := o.bootstrapCalendar(ctx)
		if err != nil {
			return "", err
		}
		if err := o.store.SaveSyncState(ctx, &model.SyncState{CalendarID: calendarID}); err != nil {
			return "", fmt.Errorf("failed to pin calendar: %w", err)
		}
		o.logger.Printf("using calendar %s", calendarID)
	}

	state, err := o.store.GetSyncState(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read sync state: %w", err)
	}

	sync := syncer.New(o.store, o.cal, o.logger)
	if err := sync.Sync(ctx); err != nil {
		return "", err
	}

	val := validator.New(o.store, o.cal, state.CalendarID, o.logger)
	if _, err := val.Run(ctx); err != nil {
		return "", err
	}

	if err := sync.Sync(ctx); err != nil {
		return "", err
	}

	return state.CalendarID, nil
}

// bootstrapCalendar finds the single working calendar, creating one when the
// account sees none. A fresh calendar is shared to the configured owner and
// opened for public reading.
func (o *Orchestrator) bootstrapCalendar(ctx context.Context) (string, error) {
	calendars, err := o.cal.ListCalendars(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list calendars: %w", err)
	}

	if len(calendars) == 0 {
		id, err := o.cal.CreateCalendar(ctx, o.cfg.Summary, o.cfg.Timezone)
		if err != nil {
			return "", fmt.Errorf("failed to create calendar: %w", err)
		}
		if o.cfg.OwnerEmail != "" {
			if err := o.cal.GrantOwner(ctx, id, o.cfg.OwnerEmail); err != nil {
				return "", err
			}
		}
		if err := o.cal.GrantPublicRead(ctx, id); err != nil {
			return "", err
		}
		o.logger.Printf("created calendar %q, embed: https://calendar.google.com/calendar/embed?src=%s", o.cfg.Summary, id)
		return id, nil
	}

	if len(calendars) > 1 {
		return "", fmt.Errorf("%w: %d calendars", ErrAmbiguousState, len(calendars))
	}
	return calendars[0].ID, nil
}

// Refresh performs one fetch-and-reconcile cycle against calendarID:
// classify the upstream set against the mirror, enrich what changed,
// project the results, and sweep notices gone upstream.
func (o *Orchestrator) Refresh(ctx context.Context, calendarID string) error {
	prior, err := o.store.ListNotices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list notices: %w", err)
	}
	priorByID := make(map[int64]*model.Notice, len(prior))
	for _, n := range prior {
		priorByID[n.ID] = n
	}

	raws, err := o.fetcher.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch notices: %w", err)
	}

	// stale starts as everything mirrored; every upstream sighting removes
	// its entry, leaving exactly the notices gone upstream.
	stale := make(map[int64]*model.Notice, len(priorByID))
	for id, n := range priorByID {
		stale[id] = n
	}

	var pending []*model.RawNotice
	for _, raw := range raws {
		delete(stale, raw.ID)
		if fingerprint.Classify(raw, priorByID[raw.ID]) != fingerprint.Unchanged {
			pending = append(pending, raw)
		}
	}

	o.logger.Printf("fetched %d notices: %d to enrich, %d unchanged, %d gone",
		len(raws), len(pending), len(raws)-len(pending), len(stale))

	if len(pending) > 0 {
		enriched, err := o.enricher.Run(ctx, pending)
		if err != nil {
			return fmt.Errorf("enrichment failed: %w", err)
		}

		proj := projector.New(o.cal, calendarID)
		for _, n := range enriched {
			if err := o.projectNotice(ctx, proj, n, priorByID[n.ID]); err != nil {
				return err
			}
		}
	}

	for _, n := range stale {
		if err := o.removeNotice(ctx, calendarID, n); err != nil {
			return err
		}
	}

	return nil
}

// projectNotice projects both slots of an enriched notice and commits the
// notice row with its mirror writes in one transaction. A changed notice
// inherits the prior linkage so remote events update in place.
func (o *Orchestrator) projectNotice(ctx context.Context, proj *projector.Projector, n, prior *model.Notice) error {
	if prior != nil {
		n.ApplicationEventID = prior.ApplicationEventID
		n.ResultEventID = prior.ResultEventID
	}

	applyOut, err := proj.ProjectSlot(ctx, projector.ApplicationTitle(n.Title), n.Memo, n.Application, n.ApplicationEventID)
	if err != nil {
		return fmt.Errorf("notice %d: %w", n.ID, err)
	}
	resultOut, err := proj.ProjectSlot(ctx, projector.ResultTitle(n.Title), n.Memo, n.Result, n.ResultEventID)
	if err != nil {
		return fmt.Errorf("notice %d: %w", n.ID, err)
	}

	applyRef(&n.ApplicationEventID, applyOut)
	applyRef(&n.ResultEventID, resultOut)

	err = o.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, out := range []projector.Outcome{applyOut, resultOut} {
			if out.Event != nil {
				if err := tx.UpsertEvent(ctx, out.Event); err != nil {
					return err
				}
			}
			if out.DeletedID != "" {
				if err := tx.DeleteEvent(ctx, out.DeletedID); err != nil {
					return err
				}
			}
		}
		return tx.UpsertNotice(ctx, n)
	})
	if err != nil {
		return fmt.Errorf("failed to commit notice %d: %w", n.ID, err)
	}

	return nil
}

func applyRef(ref **string, out projector.Outcome) {
	switch {
	case out.Event != nil:
		id := out.Event.ID
		*ref = &id
	case out.DeletedID != "":
		*ref = nil
	}
}

// removeNotice deletes a notice gone upstream: its remote events first, then
// the notice row and mirror rows in one transaction.
func (o *Orchestrator) removeNotice(ctx context.Context, calendarID string, n *model.Notice) error {
	refs := make([]string, 0, 2)
	if n.ApplicationEventID != nil {
		refs = append(refs, *n.ApplicationEventID)
	}
	if n.ResultEventID != nil {
		refs = append(refs, *n.ResultEventID)
	}

	for _, id := range refs {
		if err := o.cal.Delete(ctx, calendarID, id); err != nil {
			return fmt.Errorf("notice %d: %w", n.ID, err)
		}
	}

	err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, id := range refs {
			if err := tx.DeleteEvent(ctx, id); err != nil {
				return err
			}
		}
		return tx.DeleteNotice(ctx, n.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to remove notice %d: %w", n.ID, err)
	}

	o.logger.Printf("removed notice %d and %d events", n.ID, len(refs))
	return nil
}

// Run executes one full cycle: Init then Refresh.
func (o *Orchestrator) Run(ctx context.Context) error {
	calendarID, err := o.Init(ctx)
	if err != nil {
		return err
	}
	return o.Refresh(ctx, calendarID)
}
