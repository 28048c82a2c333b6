// Package model defines the persisted and transient data types shared by
// the sync core: raw board notices, their enriched form, mirrored calendar
// events, and the singleton sync state.
package model

import "time"

// RawNotice is an upstream board item as fetched. It is transient: the full
// upstream set is re-fetched each run and never persisted.
type RawNotice struct {
	// ID is the upstream board id, stable across fetches.
	ID int64

	// Title is the notice subject line.
	Title string

	// Content is the notice body with HTML markup stripped.
	Content string

	// Attachment holds the notice PDF bytes, nil when the notice has none.
	Attachment []byte
}

// Window is a start/end instant pair for one notice phase. A nil *Window
// means the phase does not apply; start and end are always set together.
type Window struct {
	Start time.Time
	End   time.Time
}

// Equal reports whether two windows cover the same instants.
func (w *Window) Equal(o *Window) bool {
	if w == nil || o == nil {
		return w == o
	}
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

// Notice is the enriched, persisted form of a RawNotice, keyed by the
// upstream board id.
type Notice struct {
	ID    int64
	Title string

	// Memo is free text carried into event descriptions: the link back to
	// the posting, plus the supply summary when the attachment was parsed.
	Memo string

	// ContentHash and AttachmentHash fingerprint the inputs this notice was
	// derived from. AttachmentHash is a sentinel value when the notice has
	// no attachment (see fingerprint.NoAttachment).
	ContentHash    string
	AttachmentHash string

	// Application is the subscription window, Result the announcement
	// window. Either may be nil when the notice carries no such phase.
	Application *Window
	Result      *Window

	// ApplicationEventID and ResultEventID reference the remote calendar
	// events projected from the windows. A set reference should denote an
	// existing event; divergence is repaired by the validator, not fatal.
	ApplicationEventID *string
	ResultEventID      *string
}

// Event mirrors one remote calendar event, keyed by the remote event id.
// An all-day event is represented by midnight-aligned start/end.
type Event struct {
	ID    string
	Start time.Time
	End   time.Time
	Title string
	Memo  string
}

// SyncState is the singleton sync cursor. SyncToken is nil before the first
// successful pull and whenever the remote invalidates the token; absence
// forces a full listing.
type SyncState struct {
	CalendarID string
	SyncToken  *string
}
