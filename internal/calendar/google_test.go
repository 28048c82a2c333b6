package calendar

import (
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

func seoulClient(t *testing.T) *GoogleClient {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("Failed to load zone: %v", err)
	}
	return &GoogleClient{timezone: "Asia/Seoul", loc: loc}
}

func TestBuildEventAllDay(t *testing.T) {
	c := seoulClient(t)

	start := time.Date(2025, 3, 7, 0, 0, 0, 0, c.loc)
	end := time.Date(2025, 3, 8, 0, 0, 0, 0, c.loc)

	ev := c.buildEvent(EventSpec{Title: "t", Start: start, End: end})
	if ev.Start.Date != "2025-03-07" || ev.End.Date != "2025-03-08" {
		t.Errorf("Expected date-only event, got %+v / %+v", ev.Start, ev.End)
	}
	if ev.Start.DateTime != "" || ev.End.DateTime != "" {
		t.Errorf("All-day event must not carry timestamps: %+v", ev.Start)
	}
}

func TestBuildEventTimestamped(t *testing.T) {
	c := seoulClient(t)

	start := time.Date(2025, 3, 7, 10, 0, 0, 0, c.loc)
	end := time.Date(2025, 3, 7, 17, 0, 0, 0, c.loc)

	ev := c.buildEvent(EventSpec{Title: "t", Start: start, End: end})
	if ev.Start.DateTime == "" || ev.End.DateTime == "" {
		t.Fatalf("Expected timestamped event, got %+v / %+v", ev.Start, ev.End)
	}
	if ev.Start.Date != "" {
		t.Errorf("Timestamped event must not carry a bare date: %+v", ev.Start)
	}
	if ev.Start.TimeZone != "Asia/Seoul" {
		t.Errorf("Unexpected zone %q", ev.Start.TimeZone)
	}
}

func TestBuildEventMidnightStartOnly(t *testing.T) {
	c := seoulClient(t)

	// Start at midnight but end mid-day: still timestamped.
	start := time.Date(2025, 3, 7, 0, 0, 0, 0, c.loc)
	end := time.Date(2025, 3, 7, 17, 0, 0, 0, c.loc)

	ev := c.buildEvent(EventSpec{Title: "t", Start: start, End: end})
	if ev.Start.DateTime == "" {
		t.Errorf("Mixed midnight/mid-day window must stay timestamped: %+v", ev.Start)
	}
}

func TestIsMidnightZoneSensitive(t *testing.T) {
	c := seoulClient(t)

	// Midnight UTC is 09:00 in Seoul.
	utcMidnight := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	if IsMidnight(utcMidnight, c.loc) {
		t.Error("Midnight must be judged in the configured zone, not UTC")
	}

	seoulMidnight := time.Date(2025, 3, 7, 0, 0, 0, 0, c.loc)
	if !IsMidnight(seoulMidnight, c.loc) {
		t.Error("Local midnight not recognized")
	}
}

func TestParseEventTime(t *testing.T) {
	c := seoulClient(t)

	got := c.parseEventTime(&gcal.EventDateTime{Date: "2025-03-07"})
	want := time.Date(2025, 3, 7, 0, 0, 0, 0, c.loc)
	if !got.Equal(want) {
		t.Errorf("Date parse: got %v, want %v", got, want)
	}

	got = c.parseEventTime(&gcal.EventDateTime{DateTime: "2025-03-07T10:00:00+09:00"})
	if got.Hour() != 10 {
		t.Errorf("DateTime parse: got %v", got)
	}

	if !c.parseEventTime(nil).IsZero() {
		t.Error("Tombstone times must map to the zero time")
	}
}
