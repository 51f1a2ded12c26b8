package entity

import "time"

// EventSales is the per-event sales dashboard read model. It is maintained
// asynchronously from published events and is never consulted by the write
// path.
type EventSales struct {
	EventID         string     `json:"event_id"`
	EventName       string     `json:"event_name"`
	Organization    string     `json:"organization"`
	Status          string     `json:"status"`
	TicketsSold     int64      `json:"tickets_sold"`
	TicketsRefunded int64      `json:"tickets_refunded"`
	Revenue         int64      `json:"revenue"`
	LastSaleAt      *time.Time `json:"last_sale_at,omitempty"`
	LastUpdate      time.Time  `json:"last_update"`
}
