package entity

type RefundTicket struct {
	Header    EventHeader `json:"header"`
	Authority string      `json:"authority"`
	TicketID  string      `json:"ticket_id"`
	EventID   string      `json:"event_id"`
	Buyer     string      `json:"buyer"`
	Amount    int64       `json:"amount"`
}

type SweepEventStatuses struct {
	Header    EventHeader `json:"header"`
	Authority string      `json:"authority"`
}
