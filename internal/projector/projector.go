// Package projector maps a derived notice's windows onto remote calendar
// events, deciding create vs. update vs. delete from the prior linkage.
package projector

import (
	"context"
	"fmt"

	"github.com/dalbodeule/noticecal/internal/calendar"
	"github.com/dalbodeule/noticecal/internal/model"
)

// ApplicationTitle renders the event title for a notice's application
// window.
func ApplicationTitle(title string) string {
	return "[신청] - " + title
}

// ResultTitle renders the event title for a notice's announcement window.
func ResultTitle(title string) string {
	return "[발표] - " + title
}

// Outcome reports what one slot projection did. At most one field is set:
// Event for a create/update, DeletedID for a remote delete. Both empty
// means the slot had neither a window nor a prior event.
type Outcome struct {
	Event     *model.Event
	DeletedID string
}

// Projector issues remote calendar mutations for window slots. Mirror
// writes stay with the caller, which owns the surrounding transaction.
type Projector struct {
	cal        calendar.Client
	calendarID string
}

// New creates a projector bound to one calendar.
func New(cal calendar.Client, calendarID string) *Projector {
	return &Projector{cal: cal, calendarID: calendarID}
}

// ProjectSlot projects one window slot.
//
//   - Window absent, prior event linked: the remote event is deleted and the
//     caller clears the back-reference.
//   - Window present, no prior event: a create, preserving nothing.
//   - Window present, prior event linked: an update addressed to that id, so
//     the remote event identity survives content edits.
//
// The two slots of a notice are projected independently and never share an
// event id.
func (p *Projector) ProjectSlot(ctx context.Context, title, memo string, w *model.Window, priorEventID *string) (Outcome, error) {
	if w == nil {
		if priorEventID == nil {
			return Outcome{}, nil
		}

		if err := p.cal.Delete(ctx, p.calendarID, *priorEventID); err != nil {
			return Outcome{}, fmt.Errorf("failed to delete event %s: %w", *priorEventID, err)
		}
		return Outcome{DeletedID: *priorEventID}, nil
	}

	spec := calendar.EventSpec{
		Title: title,
		Memo:  memo,
		Start: w.Start,
		End:   w.End,
	}

	var id string
	var err error
	if priorEventID == nil {
		id, err = p.cal.Insert(ctx, p.calendarID, spec)
	} else {
		id, err = p.cal.Update(ctx, p.calendarID, *priorEventID, spec)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to project window: %w", err)
	}

	return Outcome{Event: &model.Event{
		ID:    id,
		Start: w.Start,
		End:   w.End,
		Title: title,
		Memo:  memo,
	}}, nil
}
