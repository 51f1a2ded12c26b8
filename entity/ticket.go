package entity

import "time"

// Ticket is proof of purchase for one admission unit, addressed by the
// (event, buyer) pair: a buyer holds at most one ticket per event.
//
// Lifecycle: Active -> Used (terminal) or Active -> Refunded (terminal).
// The two terminal paths are mutually exclusive.
type Ticket struct {
	ID           string    `json:"ticket_id" db:"ticket_id"`
	EventID      string    `json:"event_id" db:"event_id"`
	Buyer        string    `json:"buyer" db:"buyer"`
	TicketNumber int64     `json:"ticket_number" db:"ticket_number"`
	PricePaid    int64     `json:"price_paid" db:"price_paid"`
	PurchasedAt  time.Time `json:"purchased_at" db:"purchased_at"`
	Used         bool      `json:"used" db:"used"`
	Refunded     bool      `json:"refunded" db:"refunded"`
}

// Valid reports whether the ticket still grants entry.
func (t Ticket) Valid() bool {
	return !t.Used && !t.Refunded
}
