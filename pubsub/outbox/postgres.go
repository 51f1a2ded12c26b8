package outbox

import (
	"context"
	stdSQL "database/sql"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"

	"tixledger/pubsub/bus"
)

const topic = "events_to_forward"

func NewPostgresSubscriber(db *stdSQL.DB, logger watermill.LoggerAdapter) message.Subscriber {
	subscriber, err := sql.NewSubscriber(db, sql.SubscriberConfig{
		SchemaAdapter:    sql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   sql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
	}, logger)
	if err != nil {
		panic(fmt.Errorf("could not create postgres subscriber: %w", err))
	}

	return subscriber
}

// NewPublisherForTx returns a publisher writing to the outbox table within
// the given transaction, so domain events commit or roll back together with
// the ledger writes they describe.
func NewPublisherForTx(ctx context.Context, tx *sqlx.Tx) (message.Publisher, error) {
	logger := log.NewWatermill(log.FromContext(ctx))

	var publisher message.Publisher
	publisher, err := sql.NewPublisher(
		tx,
		sql.PublisherConfig{
			SchemaAdapter:        sql.DefaultPostgreSQLSchema{},
			AutoInitializeSchema: true,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("could not create outbox publisher: %w", err)
	}

	return forwarder.NewPublisher(publisher, forwarder.PublisherConfig{
		ForwarderTopic: topic,
	}), nil
}

// NewEventBusForTx is the repositories' entry point: a cqrs event bus that
// stages publishes in the outbox of the given transaction.
func NewEventBusForTx(ctx context.Context, tx *sqlx.Tx) (*cqrs.EventBus, error) {
	publisher, err := NewPublisherForTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	return bus.NewEventBus(publisher)
}

func AddForwarderHandler(
	postgresSubscriber message.Subscriber,
	publisher message.Publisher,
	router *message.Router,
	logger watermill.LoggerAdapter,
) {
	_, err := forwarder.NewForwarder(postgresSubscriber, publisher, logger, forwarder.Config{
		ForwarderTopic: topic,
		Router:         router,
	})
	if err != nil {
		panic(fmt.Errorf("could not create forwarder: %w", err))
	}
}
