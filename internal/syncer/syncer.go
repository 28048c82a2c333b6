// Package syncer pulls remote calendar changes into the local event mirror
// using incremental sync tokens.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dalbodeule/noticecal/internal/calendar"
	"github.com/dalbodeule/noticecal/internal/model"
	"github.com/dalbodeule/noticecal/internal/store"
)

// ErrNoState reports a missing sync state row. Init must run first.
var ErrNoState = errors.New("syncer: sync state not initialized")

// Syncer reconciles the event mirror with the remote listing.
type Syncer struct {
	store  *store.Store
	cal    calendar.Client
	logger *log.Logger
}

// New builds a syncer.
func New(st *store.Store, cal calendar.Client, logger *log.Logger) *Syncer {
	return &Syncer{store: st, cal: cal, logger: logger}
}

// pull drains the listing into one item slice and returns the next sync
// token. An empty syncToken requests a full listing.
func (s *Syncer) pull(ctx context.Context, calendarID, syncToken string) ([]*calendar.Item, string, error) {
	var items []*calendar.Item
	pageToken := ""

	for {
		page, err := s.cal.Events(ctx, calendarID, syncToken, pageToken)
		if err != nil {
			return nil, "", err
		}

		items = append(items, page.Items...)

		if page.NextPageToken == "" {
			if page.NextSyncToken == "" {
				return nil, "", fmt.Errorf("syncer: listing ended without a sync token")
			}
			return items, page.NextSyncToken, nil
		}
		pageToken = page.NextPageToken
	}
}

// Sync pulls every change since the stored token and applies it to the
// mirror. The upserts, deletes, and the token advance commit in one
// transaction, so a failed apply leaves the old token in place and the next
// run re-pulls the same changes.
//
// A token the remote no longer honors falls back to a full listing; the
// mirror rows not mentioned by it are left for the validator to reconcile.
func (s *Syncer) Sync(ctx context.Context) error {
	state, err := s.store.GetSyncState(ctx)
	if err != nil {
		return fmt.Errorf("failed to read sync state: %w", err)
	}
	if state == nil {
		return ErrNoState
	}

	token := ""
	if state.SyncToken != nil {
		token = *state.SyncToken
	}

	items, nextToken, err := s.pull(ctx, state.CalendarID, token)
	if errors.Is(err, calendar.ErrTokenExpired) {
		s.logger.Printf("sync token expired, falling back to full listing")
		items, nextToken, err = s.pull(ctx, state.CalendarID, "")
	}
	if err != nil {
		return fmt.Errorf("failed to pull events: %w", err)
	}

	removed, upserted := 0, 0
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, item := range items {
			if item.Status == calendar.StatusCancelled {
				if err := tx.DeleteEvent(ctx, item.ID); err != nil {
					return err
				}
				removed++
				continue
			}

			if err := tx.UpsertEvent(ctx, &model.Event{
				ID:    item.ID,
				Start: item.Start,
				End:   item.End,
				Title: item.Title,
				Memo:  item.Memo,
			}); err != nil {
				return err
			}
			upserted++
		}

		return tx.SaveSyncState(ctx, &model.SyncState{
			CalendarID: state.CalendarID,
			SyncToken:  &nextToken,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to apply %d changes: %w", len(items), err)
	}

	s.logger.Printf("synced %d changes (%d upserted, %d removed)", len(items), upserted, removed)
	return nil
}
