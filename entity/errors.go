package entity

import "errors"

// Ledger errors are surfaced verbatim to callers; nothing in the core
// retries or rewrites them.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyInitialized = errors.New("already initialized")

	// Registry.
	ErrNameTooLong          = errors.New("organization name too long")
	ErrDescriptionTooLong   = errors.New("organization description too long")
	ErrRegistryFull         = errors.New("registry has reached maximum capacity for organizations")
	ErrCategoryFull         = errors.New("category has reached maximum capacity")
	ErrEventNotFound        = errors.New("event not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrInvalidEventStatus   = errors.New("invalid event status")

	// Organization store.
	ErrInvalidName        = errors.New("invalid organization name")
	ErrInvalidMetadataURI = errors.New("invalid metadata uri")
	ErrInvalidEventDate   = errors.New("invalid event date")
	ErrEventAtCapacity    = errors.New("event at capacity")

	// Ticketing engine.
	ErrTicketAlreadyUsed   = errors.New("ticket is already used")
	ErrEventSoldOut        = errors.New("event is sold out")
	ErrEventEnded          = errors.New("event has ended")
	ErrInvalidEventID      = errors.New("invalid event id")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrInvalidTicketOwner  = errors.New("invalid ticket owner")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrTicketRefunded      = errors.New("ticket is refunded")

	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
)
