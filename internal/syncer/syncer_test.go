package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalbodeule/noticecal/internal/calendar"
	"github.com/dalbodeule/noticecal/internal/calendar/caltest"
	"github.com/dalbodeule/noticecal/internal/logging"
	"github.com/dalbodeule/noticecal/internal/model"
	"github.com/dalbodeule/noticecal/internal/store"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	return st
}

func seedState(t *testing.T, st *store.Store, token *string) {
	t.Helper()
	err := st.SaveSyncState(context.Background(), &model.SyncState{
		CalendarID: "cal-1",
		SyncToken:  token,
	})
	if err != nil {
		t.Fatalf("Failed to seed sync state: %v", err)
	}
}

func confirmed(id, title string) *calendar.Item {
	return &calendar.Item{
		ID:     id,
		Status: calendar.StatusConfirmed,
		Title:  title,
		Start:  time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 3, 7, 17, 0, 0, 0, time.UTC),
	}
}

func cancelled(id string) *calendar.Item {
	return &calendar.Item{ID: id, Status: calendar.StatusCancelled}
}

func TestSyncRequiresState(t *testing.T) {
	st := setupStore(t)
	s := New(st, caltest.New(), logging.Discard())

	if err := s.Sync(context.Background()); !errors.Is(err, ErrNoState) {
		t.Fatalf("Expected ErrNoState, got %v", err)
	}
}

func TestSyncFullListing(t *testing.T) {
	st := setupStore(t)
	seedState(t, st, nil)

	fake := caltest.New()
	fake.Seed(confirmed("evt-1", "one"))
	fake.Seed(confirmed("evt-2", "two"))

	s := New(st, fake, logging.Discard())
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	ctx := context.Background()
	events, err := st.ListEvents(ctx)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 mirrored events, got %d", len(events))
	}

	state, err := st.GetSyncState(ctx)
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state.SyncToken == nil || *state.SyncToken == "" {
		t.Error("Sync must store the listing's sync token")
	}
}

func TestSyncPagination(t *testing.T) {
	st := setupStore(t)
	seedState(t, st, nil)

	fake := caltest.New()
	fake.PagesFn = func(syncToken, pageToken string) (*calendar.Page, error) {
		switch pageToken {
		case "":
			return &calendar.Page{
				Items:         []*calendar.Item{confirmed("evt-1", "one")},
				NextPageToken: "p2",
			}, nil
		case "p2":
			return &calendar.Page{
				Items:         []*calendar.Item{confirmed("evt-2", "two")},
				NextSyncToken: "tok-final",
			}, nil
		}
		return nil, errors.New("unexpected page token")
	}

	s := New(st, fake, logging.Discard())
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	ctx := context.Background()
	if n, _ := st.EventCount(ctx); n != 2 {
		t.Errorf("Expected both pages applied, got %d events", n)
	}
	state, _ := st.GetSyncState(ctx)
	if state.SyncToken == nil || *state.SyncToken != "tok-final" {
		t.Errorf("Expected final page's sync token, got %v", state.SyncToken)
	}
}

func TestSyncAppliesTombstones(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	err := st.UpsertEvent(ctx, &model.Event{
		ID:    "evt-1",
		Start: time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 7, 17, 0, 0, 0, time.UTC),
		Title: "stale",
	})
	if err != nil {
		t.Fatalf("Failed to seed mirror: %v", err)
	}
	tok := "tok-1"
	seedState(t, st, &tok)

	fake := caltest.New()
	fake.PagesFn = func(syncToken, pageToken string) (*calendar.Page, error) {
		if syncToken != "tok-1" {
			return nil, errors.New("expected incremental pull")
		}
		return &calendar.Page{
			Items:         []*calendar.Item{cancelled("evt-1"), confirmed("evt-2", "fresh")},
			NextSyncToken: "tok-2",
		}, nil
	}

	s := New(st, fake, logging.Discard())
	if err := s.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	events, _ := st.ListEvents(ctx)
	if len(events) != 1 || events[0].ID != "evt-2" {
		t.Fatalf("Expected evt-1 removed and evt-2 mirrored, got %+v", events)
	}
	state, _ := st.GetSyncState(ctx)
	if state.SyncToken == nil || *state.SyncToken != "tok-2" {
		t.Errorf("Token must advance with the applied changes, got %v", state.SyncToken)
	}
}

func TestSyncExpiredTokenFallsBack(t *testing.T) {
	st := setupStore(t)
	tok := "tok-stale"
	seedState(t, st, &tok)

	fake := caltest.New()
	fake.PagesFn = func(syncToken, pageToken string) (*calendar.Page, error) {
		if syncToken == "tok-stale" {
			return nil, calendar.ErrTokenExpired
		}
		return &calendar.Page{
			Items:         []*calendar.Item{confirmed("evt-1", "one")},
			NextSyncToken: "tok-fresh",
		}, nil
	}

	s := New(st, fake, logging.Discard())
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	ctx := context.Background()
	if n, _ := st.EventCount(ctx); n != 1 {
		t.Errorf("Expected full listing applied, got %d events", n)
	}
	state, _ := st.GetSyncState(ctx)
	if state.SyncToken == nil || *state.SyncToken != "tok-fresh" {
		t.Errorf("Expected the full listing's token, got %v", state.SyncToken)
	}
}

func TestSyncFailedPullKeepsToken(t *testing.T) {
	st := setupStore(t)
	tok := "tok-1"
	seedState(t, st, &tok)

	fake := caltest.New()
	fake.PagesFn = func(syncToken, pageToken string) (*calendar.Page, error) {
		return nil, errors.New("remote unavailable")
	}

	s := New(st, fake, logging.Discard())
	if err := s.Sync(context.Background()); err == nil {
		t.Fatal("Expected pull failure to surface")
	}

	state, _ := st.GetSyncState(context.Background())
	if state.SyncToken == nil || *state.SyncToken != "tok-1" {
		t.Errorf("Failed pull must not advance the token, got %v", state.SyncToken)
	}
}
