package entity

import (
	"fmt"
	"time"
)

type EventStatus string

const (
	EventStatusUpcoming EventStatus = "upcoming"
	EventStatusOngoing  EventStatus = "ongoing"
	EventStatusFinished EventStatus = "finished"
)

func ParseEventStatus(s string) (EventStatus, error) {
	switch EventStatus(s) {
	case EventStatusUpcoming, EventStatusOngoing, EventStatusFinished:
		return EventStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEventStatus, s)
}

// NextByTime returns the status an event should hold at the given instant,
// advancing forward only. The time sweep never moves an event backward.
func (s EventStatus) NextByTime(start, end, now time.Time) EventStatus {
	switch s {
	case EventStatusUpcoming:
		if !now.Before(start) {
			if !now.Before(end) {
				return EventStatusFinished
			}
			return EventStatusOngoing
		}
	case EventStatusOngoing:
		if !now.Before(end) {
			return EventStatusFinished
		}
	}
	return s
}

// Event is a capacity-bounded, time-bounded sellable item. The counters
// satisfy TicketsMinted + RemainingTickets == MaxCapacity at all times,
// and Status always matches the index bucket holding the event id.
type Event struct {
	ID                string      `json:"event_id" db:"event_id"`
	OrganizationOwner string      `json:"organization_owner" db:"organization_owner"`
	OrgEventSeq       int64       `json:"org_event_seq" db:"org_event_seq"`
	Name              string      `json:"name" db:"name"`
	Description       string      `json:"description" db:"description"`
	Location          string      `json:"location" db:"location"`
	StartTime         time.Time   `json:"start_time" db:"start_time"`
	EndTime           time.Time   `json:"end_time" db:"end_time"`
	Price             int64       `json:"price" db:"price"`
	MaxCapacity       int64       `json:"max_capacity" db:"max_capacity"`
	RemainingTickets  int64       `json:"remaining_tickets" db:"remaining_tickets"`
	TicketsMinted     int64       `json:"tickets_minted" db:"tickets_minted"`
	Status            EventStatus `json:"status" db:"status"`
	TicketMetadataURI string      `json:"ticket_metadata_uri" db:"ticket_metadata_uri"`
}

func (e Event) SoldOut() bool {
	return e.RemainingTickets == 0
}

func (e Event) Ended(now time.Time) bool {
	return !now.Before(e.EndTime)
}
