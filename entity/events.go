package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventHeader struct {
	ID          string    `json:"id"`
	PublishedAt time.Time `json:"published_at"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

type OrganizationRegistered struct {
	Header      EventHeader `json:"header"`
	ID          int64       `json:"id"`
	Owner       string      `json:"owner"`
	Name        string      `json:"name"`
	KycVerified bool        `json:"kyc_verified"`
}

type EventCreated struct {
	Header            EventHeader `json:"header"`
	EventID           string      `json:"event_id"`
	OrganizationOwner string      `json:"organization_owner"`
	Name              string      `json:"name"`
	StartTime         time.Time   `json:"start_time"`
	EndTime           time.Time   `json:"end_time"`
	Price             int64       `json:"price"`
	MaxCapacity       int64       `json:"max_capacity"`
}

type EventStatusChanged struct {
	Header    EventHeader `json:"header"`
	EventID   string      `json:"event_id"`
	OldStatus EventStatus `json:"old_status"`
	NewStatus EventStatus `json:"new_status"`
}

type TicketMinted struct {
	Header       EventHeader `json:"header"`
	TicketID     string      `json:"ticket_id"`
	TicketNumber int64       `json:"ticket_number"`
	EventID      string      `json:"event_id"`
	Buyer        string      `json:"buyer"`
	PricePaid    int64       `json:"price_paid"`
}

type TicketUsed struct {
	Header   EventHeader `json:"header"`
	TicketID string      `json:"ticket_id"`
	EventID  string      `json:"event_id"`
}

type TicketRefunded struct {
	Header   EventHeader `json:"header"`
	TicketID string      `json:"ticket_id"`
	EventID  string      `json:"event_id"`
	Buyer    string      `json:"buyer"`
	Amount   int64       `json:"amount"`
}
