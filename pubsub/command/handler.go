package command

import (
	"context"
)

type TicketsRepository interface {
	Refund(ctx context.Context, authority string, ticketID string, eventID string, buyer string, amount int64) error
}

type EventsIndex interface {
	SweepEventStatuses(ctx context.Context, authority string) (int, error)
}

type Handler struct {
	ticketsRepo TicketsRepository
	eventsIndex EventsIndex
}

func NewHandler(
	ticketsRepo TicketsRepository,
	eventsIndex EventsIndex,
) Handler {
	if ticketsRepo == nil {
		panic("missing ticketsRepo")
	}
	if eventsIndex == nil {
		panic("missing eventsIndex")
	}

	return Handler{
		ticketsRepo: ticketsRepo,
		eventsIndex: eventsIndex,
	}
}
