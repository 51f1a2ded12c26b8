package entity

// Registry is the global singleton holding the registry authority and the
// organization directory size. Created once at deployment.
type Registry struct {
	Authority         string `json:"authority" db:"authority"`
	OrganizationCount int64  `json:"organization_count" db:"organization_count"`
}

// TicketManager is the ticketing engine singleton carrying the global
// ticket-sequence counter.
type TicketManager struct {
	Authority   string `json:"authority" db:"authority"`
	TicketCount int64  `json:"ticket_count" db:"ticket_count"`
}
