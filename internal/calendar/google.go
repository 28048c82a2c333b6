package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// maxResults per listing page. The remote caps at 2500.
const maxResults = 2500

// GoogleClient implements Client against the Google Calendar API with a
// service account key.
type GoogleClient struct {
	svc      *gcal.Service
	timezone string
	loc      *time.Location
}

// NewGoogleClient builds a client from a service account key file. timezone
// is the single fixed zone used for all-day detection and timestamped
// events.
func NewGoogleClient(ctx context.Context, credentialsFile, timezone string) (*GoogleClient, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar service: %w", err)
	}

	return &GoogleClient{svc: svc, timezone: timezone, loc: loc}, nil
}

// ListCalendars implements Client.ListCalendars.
func (c *GoogleClient) ListCalendars(ctx context.Context) ([]Info, error) {
	res, err := c.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	infos := make([]Info, 0, len(res.Items))
	for _, item := range res.Items {
		infos = append(infos, Info{ID: item.Id, Summary: item.Summary})
	}

	return infos, nil
}

// CreateCalendar implements Client.CreateCalendar.
func (c *GoogleClient) CreateCalendar(ctx context.Context, summary, timezone string) (string, error) {
	created, err := c.svc.Calendars.Insert(&gcal.Calendar{
		Summary:  summary,
		TimeZone: timezone,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create calendar: %w", err)
	}

	return created.Id, nil
}

// GrantOwner implements Client.GrantOwner.
func (c *GoogleClient) GrantOwner(ctx context.Context, calendarID, email string) error {
	_, err := c.svc.Acl.Insert(calendarID, &gcal.AclRule{
		Role:  "owner",
		Scope: &gcal.AclRuleScope{Type: "user", Value: email},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to grant owner to %s: %w", email, err)
	}

	return nil
}

// GrantPublicRead implements Client.GrantPublicRead.
func (c *GoogleClient) GrantPublicRead(ctx context.Context, calendarID string) error {
	_, err := c.svc.Acl.Insert(calendarID, &gcal.AclRule{
		Role:  "reader",
		Scope: &gcal.AclRuleScope{Type: "default"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to grant public read: %w", err)
	}

	return nil
}

// Events implements Client.Events. ShowDeleted is required so cancelled
// items surface as tombstones during incremental pulls.
func (c *GoogleClient) Events(ctx context.Context, calendarID, syncToken, pageToken string) (*Page, error) {
	call := c.svc.Events.List(calendarID).
		MaxResults(maxResults).
		ShowDeleted(true)
	if syncToken != "" {
		call = call.SyncToken(syncToken)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	res, err := call.Context(ctx).Do()
	if err != nil {
		// 410 Gone: the token is too old, a full resync is required.
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusGone {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	page := &Page{
		NextPageToken: res.NextPageToken,
		NextSyncToken: res.NextSyncToken,
		Items:         make([]*Item, 0, len(res.Items)),
	}

	for _, ev := range res.Items {
		page.Items = append(page.Items, &Item{
			ID:     ev.Id,
			Status: ev.Status,
			Title:  ev.Summary,
			Memo:   ev.Description,
			Start:  c.parseEventTime(ev.Start),
			End:    c.parseEventTime(ev.End),
		})
	}

	return page, nil
}

// Insert implements Client.Insert.
func (c *GoogleClient) Insert(ctx context.Context, calendarID string, spec EventSpec) (string, error) {
	created, err := c.svc.Events.Insert(calendarID, c.buildEvent(spec)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}

	return created.Id, nil
}

// Update implements Client.Update.
func (c *GoogleClient) Update(ctx context.Context, calendarID, eventID string, spec EventSpec) (string, error) {
	updated, err := c.svc.Events.Update(calendarID, eventID, c.buildEvent(spec)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update event %s: %w", eventID, err)
	}

	return updated.Id, nil
}

// Delete implements Client.Delete. An already-deleted event (404/410) is
// treated as success so validator orphan sweeps stay idempotent.
func (c *GoogleClient) Delete(ctx context.Context, calendarID, eventID string) error {
	err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) &&
			(apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
			return nil
		}
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}

	return nil
}

// buildEvent maps an EventSpec onto the wire format. A window whose start
// and end both land on local midnight becomes a date-only (all-day) event;
// anything else is timestamped in the configured zone.
func (c *GoogleClient) buildEvent(spec EventSpec) *gcal.Event {
	allDay := IsMidnight(spec.Start, c.loc) && IsMidnight(spec.End, c.loc)

	var start, end *gcal.EventDateTime
	if allDay {
		start = &gcal.EventDateTime{Date: spec.Start.In(c.loc).Format("2006-01-02")}
		end = &gcal.EventDateTime{Date: spec.End.In(c.loc).Format("2006-01-02")}
	} else {
		start = &gcal.EventDateTime{DateTime: spec.Start.Format(time.RFC3339), TimeZone: c.timezone}
		end = &gcal.EventDateTime{DateTime: spec.End.Format(time.RFC3339), TimeZone: c.timezone}
	}

	return &gcal.Event{
		Summary:     spec.Title,
		Description: spec.Memo,
		Start:       start,
		End:         end,
	}
}

// parseEventTime resolves either wire representation to an instant.
// Cancelled tombstones carry no times and map to the zero time.
func (c *GoogleClient) parseEventTime(dt *gcal.EventDateTime) time.Time {
	if dt == nil {
		return time.Time{}
	}

	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, c.loc)
		if err == nil {
			return t
		}
	}

	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err == nil {
			return t
		}
	}

	return time.Time{}
}

// IsMidnight reports whether t lands exactly on midnight in loc.
func IsMidnight(t time.Time, loc *time.Location) bool {
	lt := t.In(loc)
	return lt.Hour() == 0 && lt.Minute() == 0 && lt.Second() == 0 && lt.Nanosecond() == 0
}
