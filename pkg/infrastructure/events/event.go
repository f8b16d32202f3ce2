package events

import (
	"time"

	"github.com/vsinha/vmi/pkg/domain/entities"
)

// DayLayout keys the journal's per-day streams
const DayLayout = "2006-01-02"

// Event is an activity record as placed in the journal
type Event struct {
	// Seq is the position across the whole journal, from 1
	Seq int
	Day string
	// Version is the position within Day, from 1
	Version int
	Audit   entities.AuditEvent
}

func (e Event) Type() entities.AuditEventType {
	return e.Audit.Type
}

// EventHandler reacts to journal appends
type EventHandler interface {
	Handle(event Event) error
	CanHandle(eventType entities.AuditEventType) bool
}

// EventStore is an append-only journal of activity records
type EventStore interface {
	Append(record entities.AuditEvent) Event
	ReadDay(day time.Time, fromVersion int) []Event
	ReadAll(fromSeq int) []Event
	// Subscribe registers handler for types, or for every type when none are given
	Subscribe(handler EventHandler, types ...entities.AuditEventType)
	Unsubscribe(handler EventHandler)
}

// DayOf returns the journal day t falls on, in t's location
func DayOf(t time.Time) string {
	return t.Format(DayLayout)
}
