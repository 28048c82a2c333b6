// Package calendar defines the remote calendar port consumed by the sync
// engine, projector, and validator, plus its Google Calendar implementation.
package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrTokenExpired reports that the remote rejected the incremental sync
// token. Callers treat this identically to having no token: full listing.
var ErrTokenExpired = errors.New("calendar: sync token expired")

// Item statuses as reported by the remote listing.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// EventSpec is the payload for insert and update calls. Whether the event
// lands as date-only (all-day) or timestamped is decided by the
// implementation from the start/end instants and its configured zone.
type EventSpec struct {
	Title string
	Memo  string
	Start time.Time
	End   time.Time
}

// Item is one event returned by a listing page. Cancelled items are
// tombstones carrying only the id.
type Item struct {
	ID     string
	Status string
	Title  string
	Memo   string
	Start  time.Time
	End    time.Time
}

// Page is one page of an events listing. NextSyncToken is only set on the
// final page; until then NextPageToken drives pagination.
type Page struct {
	Items         []*Item
	NextPageToken string
	NextSyncToken string
}

// Info identifies one remote calendar.
type Info struct {
	ID      string
	Summary string
}

// Client is the remote calendar service boundary.
type Client interface {
	// ListCalendars returns the calendars visible to the service account.
	ListCalendars(ctx context.Context) ([]Info, error)

	// CreateCalendar creates a calendar and returns its id.
	CreateCalendar(ctx context.Context, summary, timezone string) (string, error)

	// GrantOwner shares the calendar with a user as owner.
	GrantOwner(ctx context.Context, calendarID, email string) error

	// GrantPublicRead makes the calendar publicly readable.
	GrantPublicRead(ctx context.Context, calendarID string) error

	// Events returns one listing page. An empty syncToken requests a full
	// listing; a rejected token yields ErrTokenExpired.
	Events(ctx context.Context, calendarID, syncToken, pageToken string) (*Page, error)

	// Insert creates an event and returns the remote id.
	Insert(ctx context.Context, calendarID string, spec EventSpec) (string, error)

	// Update rewrites the event addressed by eventID, preserving its id.
	Update(ctx context.Context, calendarID, eventID string, spec EventSpec) (string, error)

	// Delete removes an event. Deleting an already-gone event is not an
	// error.
	Delete(ctx context.Context, calendarID, eventID string) error
}
