package command

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"tixledger/entity"
)

func (h Handler) SweepEventStatusesHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"SweepEventStatusesHandler",
		func(ctx context.Context, command *entity.SweepEventStatuses) error {
			moved, err := h.eventsIndex.SweepEventStatuses(ctx, command.Authority)
			if err != nil {
				return err
			}

			if moved > 0 {
				log.FromContext(ctx).WithField("moved", moved).Info("Event statuses swept")
			}

			return nil
		},
	)
}
