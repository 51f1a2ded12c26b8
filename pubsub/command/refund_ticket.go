package command

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"tixledger/entity"
)

func (h Handler) RefundTicketHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"RefundTicketHandler",
		func(ctx context.Context, command *entity.RefundTicket) error {
			log.FromContext(ctx).Infof("RefundTicketHandler: %s", command.TicketID)

			return h.ticketsRepo.Refund(
				ctx,
				command.Authority,
				command.TicketID,
				command.EventID,
				command.Buyer,
				command.Amount,
			)
		},
	)
}
