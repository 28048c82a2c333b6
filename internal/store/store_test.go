package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dalbodeule/noticecal/internal/model"
)

// setupTestStore creates an in-memory store with the schema applied.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}

	return s
}

func strPtr(s string) *string { return &s }

func TestUpsertNoticeRoundtrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 7, 17, 0, 0, 0, time.UTC)

	n := &model.Notice{
		ID:             42,
		Title:          "Test notice",
		Memo:           "https://example.test/view.do?boardId=42",
		ContentHash:    "abc123",
		AttachmentHash: "none",
		Application:    &model.Window{Start: start, End: end},
		Result:         nil,
	}

	if err := s.UpsertNotice(ctx, n); err != nil {
		t.Fatalf("UpsertNotice failed: %v", err)
	}

	got, err := s.GetNotice(ctx, 42)
	if err != nil {
		t.Fatalf("GetNotice failed: %v", err)
	}

	if got.Title != "Test notice" || got.ContentHash != "abc123" {
		t.Errorf("Unexpected notice: %+v", got)
	}
	if got.Application == nil || !got.Application.Start.Equal(start) || !got.Application.End.Equal(end) {
		t.Errorf("Application window not preserved: %+v", got.Application)
	}
	if got.Result != nil {
		t.Errorf("Result window should be nil, got %+v", got.Result)
	}
	if got.ApplicationEventID != nil {
		t.Errorf("ApplicationEventID should be nil, got %q", *got.ApplicationEventID)
	}
}

func TestUpsertNoticeUpdatesInPlace(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	n := &model.Notice{ID: 1, Title: "v1", ContentHash: "h1", AttachmentHash: "none"}
	if err := s.UpsertNotice(ctx, n); err != nil {
		t.Fatalf("UpsertNotice failed: %v", err)
	}

	n.Title = "v2"
	n.ContentHash = "h2"
	n.ApplicationEventID = strPtr("evt-1")
	if err := s.UpsertNotice(ctx, n); err != nil {
		t.Fatalf("UpsertNotice (update) failed: %v", err)
	}

	got, err := s.GetNotice(ctx, 1)
	if err != nil {
		t.Fatalf("GetNotice failed: %v", err)
	}
	if got.Title != "v2" || got.ContentHash != "h2" {
		t.Errorf("Update not applied: %+v", got)
	}
	if got.ApplicationEventID == nil || *got.ApplicationEventID != "evt-1" {
		t.Errorf("ApplicationEventID not preserved: %v", got.ApplicationEventID)
	}

	count, err := s.NoticeCount(ctx)
	if err != nil {
		t.Fatalf("NoticeCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 notice, got %d", count)
	}
}

func TestDeleteNoticeIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.UpsertNotice(ctx, &model.Notice{ID: 7, Title: "x", ContentHash: "h", AttachmentHash: "none"}); err != nil {
		t.Fatalf("UpsertNotice failed: %v", err)
	}

	if err := s.DeleteNotice(ctx, 7); err != nil {
		t.Fatalf("DeleteNotice failed: %v", err)
	}
	if err := s.DeleteNotice(ctx, 7); err != nil {
		t.Errorf("DeleteNotice should be idempotent, got: %v", err)
	}

	if _, err := s.GetNotice(ctx, 7); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestEventRoundtrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	e := &model.Event{
		ID:    "evt-1",
		Start: time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Title: "[신청] - Test",
		Memo:  "memo",
	}

	if err := s.UpsertEvent(ctx, e); err != nil {
		t.Fatalf("UpsertEvent failed: %v", err)
	}

	events, err := s.ListEvents(ctx)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].ID != "evt-1" || !events[0].Start.Equal(e.Start) {
		t.Errorf("Event not preserved: %+v", events[0])
	}

	if err := s.DeleteEvent(ctx, "evt-1"); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	count, err := s.EventCount(ctx)
	if err != nil {
		t.Fatalf("EventCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 events after delete, got %d", count)
	}
}

func TestSyncStateSingleton(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	state, err := s.GetSyncState(ctx)
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state != nil {
		t.Fatalf("Expected nil state before init, got %+v", state)
	}

	if err := s.SaveSyncState(ctx, &model.SyncState{CalendarID: "cal-1"}); err != nil {
		t.Fatalf("SaveSyncState failed: %v", err)
	}
	if err := s.SaveSyncState(ctx, &model.SyncState{CalendarID: "cal-1", SyncToken: strPtr("tok-2")}); err != nil {
		t.Fatalf("SaveSyncState (update) failed: %v", err)
	}

	count, err := s.SyncStateCount(ctx)
	if err != nil {
		t.Fatalf("SyncStateCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected singleton sync state, got %d rows", count)
	}

	state, err = s.GetSyncState(ctx)
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state.SyncToken == nil || *state.SyncToken != "tok-2" {
		t.Errorf("Token not advanced: %v", state.SyncToken)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.UpsertNotice(ctx, &model.Notice{ID: 9, Title: "t", ContentHash: "h", AttachmentHash: "none"}); err != nil {
			return err
		}
		if err := tx.SaveSyncState(ctx, &model.SyncState{CalendarID: "cal", SyncToken: strPtr("tok")}); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	count, err := s.NoticeCount(ctx)
	if err != nil {
		t.Fatalf("NoticeCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Transaction should have rolled back, found %d notices", count)
	}

	state, err := s.GetSyncState(ctx)
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state != nil {
		t.Errorf("Sync token must not advance on rollback, got %+v", state)
	}
}

func TestWithTxCommits(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.UpsertEvent(ctx, &model.Event{ID: "e1", Start: time.Now(), End: time.Now()}); err != nil {
			return err
		}
		return tx.SaveSyncState(ctx, &model.SyncState{CalendarID: "cal", SyncToken: strPtr("tok")})
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	state, err := s.GetSyncState(ctx)
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state == nil || state.SyncToken == nil || *state.SyncToken != "tok" {
		t.Errorf("Token should be persisted with the writes it authorizes: %+v", state)
	}
}
