// Package validator reconciles derived notices against the event mirror,
// repairing links the incremental sync cannot explain: missing events are
// re-created, drifted events rewritten, and unreferenced events swept.
package validator

import (
	"context"
	"fmt"
	"log"

	"github.com/dalbodeule/noticecal/internal/calendar"
	"github.com/dalbodeule/noticecal/internal/model"
	"github.com/dalbodeule/noticecal/internal/projector"
	"github.com/dalbodeule/noticecal/internal/store"
)

// Report counts the repairs one validation pass made. A converged state
// yields the zero Report.
type Report struct {
	Created int
	Updated int
	Deleted int
	Orphans int
}

// Total returns the number of mutations in the report.
func (r Report) Total() int {
	return r.Created + r.Updated + r.Deleted + r.Orphans
}

// Validator cross-checks notices, the event mirror, and the remote.
type Validator struct {
	store      *store.Store
	cal        calendar.Client
	calendarID string
	proj       *projector.Projector
	logger     *log.Logger
}

// New builds a validator projecting onto calendarID.
func New(st *store.Store, cal calendar.Client, calendarID string, logger *log.Logger) *Validator {
	return &Validator{
		store:      st,
		cal:        cal,
		calendarID: calendarID,
		proj:       projector.New(cal, calendarID),
		logger:     logger,
	}
}

// slot is one of a notice's two projectable windows.
type slot struct {
	title  string
	window *model.Window
	ref    **string
}

func slots(n *model.Notice) []slot {
	return []slot{
		{projector.ApplicationTitle(n.Title), n.Application, &n.ApplicationEventID},
		{projector.ResultTitle(n.Title), n.Result, &n.ResultEventID},
	}
}

// Run performs one validation pass. Remote mutations are issued first; the
// matching mirror writes then commit in a single transaction, so a failed
// commit re-runs cleanly on the next pass.
//
// A second Run over an unchanged state is a fixed point: it returns the
// zero Report.
func (v *Validator) Run(ctx context.Context) (Report, error) {
	var report Report

	notices, err := v.store.ListNotices(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list notices: %w", err)
	}
	events, err := v.store.ListEvents(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list events: %w", err)
	}

	mirror := make(map[string]*model.Event, len(events))
	for _, e := range events {
		mirror[e.ID] = e
	}
	accounted := make(map[string]bool, len(events))

	var dirtyNotices []*model.Notice
	var upserts []*model.Event
	var deletes []string

	for _, n := range notices {
		dirty := false

		for _, s := range slots(n) {
			ref := *s.ref

			if s.window == nil {
				if ref == nil {
					continue
				}

				// Linked event for a cleared window: drop it everywhere.
				out, err := v.proj.ProjectSlot(ctx, s.title, n.Memo, nil, ref)
				if err != nil {
					return report, err
				}
				if _, mirrored := mirror[out.DeletedID]; mirrored {
					deletes = append(deletes, out.DeletedID)
				}
				accounted[out.DeletedID] = true
				*s.ref = nil
				dirty = true
				report.Deleted++
				continue
			}

			if ref != nil {
				if prior, ok := mirror[*ref]; ok {
					accounted[*ref] = true
					if prior.Start.Equal(s.window.Start) && prior.End.Equal(s.window.End) &&
						prior.Title == s.title && prior.Memo == n.Memo {
						continue
					}

					// Drifted event: rewrite in place.
					out, err := v.proj.ProjectSlot(ctx, s.title, n.Memo, s.window, ref)
					if err != nil {
						return report, err
					}
					upserts = append(upserts, out.Event)
					report.Updated++
					continue
				}
				// The link points at nothing the mirror knows; fall through
				// and re-create.
			}

			out, err := v.proj.ProjectSlot(ctx, s.title, n.Memo, s.window, nil)
			if err != nil {
				return report, err
			}
			id := out.Event.ID
			*s.ref = &id
			accounted[id] = true
			upserts = append(upserts, out.Event)
			dirty = true
			report.Created++
			v.logger.Printf("re-created event %s for notice %d", id, n.ID)
		}

		if dirty {
			dirtyNotices = append(dirtyNotices, n)
		}
	}

	// Anything mirrored but referenced by no notice is an orphan.
	for _, e := range events {
		if accounted[e.ID] {
			continue
		}
		if err := v.cal.Delete(ctx, v.calendarID, e.ID); err != nil {
			return report, fmt.Errorf("failed to sweep orphan %s: %w", e.ID, err)
		}
		deletes = append(deletes, e.ID)
		report.Orphans++
		v.logger.Printf("swept orphan event %s (%s)", e.ID, e.Title)
	}

	if report.Total() == 0 {
		return report, nil
	}

	err = v.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, id := range deletes {
			if err := tx.DeleteEvent(ctx, id); err != nil {
				return err
			}
		}
		for _, e := range upserts {
			if err := tx.UpsertEvent(ctx, e); err != nil {
				return err
			}
		}
		for _, n := range dirtyNotices {
			if err := tx.UpsertNotice(ctx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to commit repairs: %w", err)
	}

	v.logger.Printf("validation repaired %d inconsistencies (%d created, %d updated, %d deleted, %d orphans)",
		report.Total(), report.Created, report.Updated, report.Deleted, report.Orphans)
	return report, nil
}
