// Package caltest provides an in-memory calendar.Client for tests.
package caltest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dalbodeule/noticecal/internal/calendar"
)

// Fake is an in-memory calendar.Client. Inserted events are held as
// confirmed items; listings either replay a scripted page sequence
// (PagesFn) or return the current event set as one page with a fresh sync
// token.
type Fake struct {
	mu sync.Mutex

	// Calendars returned by ListCalendars.
	Calendars []calendar.Info

	// PagesFn, when set, scripts Events responses.
	PagesFn func(syncToken, pageToken string) (*calendar.Page, error)

	events  map[string]*calendar.Item
	nextID  int
	nextTok int

	// Call logs.
	Inserted []string
	Updated  []string
	Deleted  []string

	CreatedCalendars []string
	OwnerGrants      []string
	PublicGrants     int
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{events: make(map[string]*calendar.Item)}
}

// Seed places an event directly into the remote state.
func (f *Fake) Seed(item *calendar.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.Status == "" {
		item.Status = calendar.StatusConfirmed
	}
	f.events[item.ID] = item
}

// Has reports whether an event id exists remotely.
func (f *Fake) Has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.events[id]
	return ok
}

// EventIDs returns the current remote event ids, sorted.
func (f *Fake) EventIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.events))
	for id := range f.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListCalendars implements calendar.Client.
func (f *Fake) ListCalendars(ctx context.Context) ([]calendar.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]calendar.Info(nil), f.Calendars...), nil
}

// CreateCalendar implements calendar.Client.
func (f *Fake) CreateCalendar(ctx context.Context, summary, timezone string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("cal-%d", len(f.CreatedCalendars)+1)
	f.CreatedCalendars = append(f.CreatedCalendars, id)
	f.Calendars = append(f.Calendars, calendar.Info{ID: id, Summary: summary})
	return id, nil
}

// GrantOwner implements calendar.Client.
func (f *Fake) GrantOwner(ctx context.Context, calendarID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OwnerGrants = append(f.OwnerGrants, email)
	return nil
}

// GrantPublicRead implements calendar.Client.
func (f *Fake) GrantPublicRead(ctx context.Context, calendarID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PublicGrants++
	return nil
}

// Events implements calendar.Client.
func (f *Fake) Events(ctx context.Context, calendarID, syncToken, pageToken string) (*calendar.Page, error) {
	if f.PagesFn != nil {
		return f.PagesFn(syncToken, pageToken)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	page := &calendar.Page{}
	for _, id := range f.sortedIDsLocked() {
		item := *f.events[id]
		page.Items = append(page.Items, &item)
	}

	f.nextTok++
	page.NextSyncToken = fmt.Sprintf("tok-%d", f.nextTok)
	return page, nil
}

func (f *Fake) sortedIDsLocked() []string {
	ids := make([]string, 0, len(f.events))
	for id := range f.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Insert implements calendar.Client.
func (f *Fake) Insert(ctx context.Context, calendarID string, spec calendar.EventSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("evt-%d", f.nextID)
	f.events[id] = &calendar.Item{
		ID:     id,
		Status: calendar.StatusConfirmed,
		Title:  spec.Title,
		Memo:   spec.Memo,
		Start:  spec.Start,
		End:    spec.End,
	}
	f.Inserted = append(f.Inserted, id)
	return id, nil
}

// Update implements calendar.Client.
func (f *Fake) Update(ctx context.Context, calendarID, eventID string, spec calendar.EventSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.events[eventID]; !ok {
		return "", fmt.Errorf("caltest: update of unknown event %s", eventID)
	}
	f.events[eventID] = &calendar.Item{
		ID:     eventID,
		Status: calendar.StatusConfirmed,
		Title:  spec.Title,
		Memo:   spec.Memo,
		Start:  spec.Start,
		End:    spec.End,
	}
	f.Updated = append(f.Updated, eventID)
	return eventID, nil
}

// Delete implements calendar.Client. Like the real remote, deleting an
// already-gone event succeeds.
func (f *Fake) Delete(ctx context.Context, calendarID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.events, eventID)
	f.Deleted = append(f.Deleted, eventID)
	return nil
}
