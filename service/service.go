package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tixledger/db"
	"tixledger/db/accounts"
	"tixledger/db/organizations"
	"tixledger/db/read_model_sales"
	"tixledger/db/registry"
	"tixledger/db/tickets"
	"tixledger/entity"
	"tixledger/http"
	"tixledger/pubsub"
	"tixledger/pubsub/bus"
	"tixledger/pubsub/command"
	"tixledger/pubsub/event"
	"tixledger/pubsub/outbox"
)

func init() {
	log.Init(logrus.InfoLevel)
}

type Service struct {
	db              *sqlx.DB
	watermillRouter *message.Router
	httpServer      *http.Server
	commandBus      *cqrs.CommandBus
	sweepAuthority  string
	sweepInterval   time.Duration
}

func New(
	addr string,
	db *sqlx.DB,
	redisClient *redis.Client,
	kycService registry.KycService,
	limits registry.Limits,
	sweepAuthority string,
	sweepInterval time.Duration,
) Service {
	registryRepo := registry.NewPostgresRepository(db, kycService, limits)
	organizationsRepo := organizations.NewPostgresRepository(db, registryRepo)
	accountsRepo := accounts.NewPostgresRepository(db)
	ticketsRepo := tickets.NewPostgresRepository(db, accountsRepo)
	salesReadModel := read_model_sales.NewEventSalesReadModel(db)

	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	var redisPublisher message.Publisher
	redisPublisher = pubsub.NewRedisPublisher(redisClient, watermillLogger)
	redisPublisher = log.CorrelationPublisherDecorator{Publisher: redisPublisher}

	commandBus, err := bus.NewCommandBus(redisPublisher)
	if err != nil {
		panic(fmt.Errorf("failed to create command bus: %w", err))
	}

	commandsHandler := command.NewHandler(ticketsRepo, registryRepo)

	postgresSubscriber := outbox.NewPostgresSubscriber(db.DB, watermillLogger)
	eventProcessorConfig := event.NewProcessorConfig(redisClient, watermillLogger)
	commandProcessorConfig := command.NewProcessorConfig(redisClient, watermillLogger)

	watermillRouter, err := pubsub.NewWatermillRouter(
		postgresSubscriber,
		redisPublisher,
		eventProcessorConfig,
		salesReadModel,
		commandProcessorConfig,
		commandsHandler,
		watermillLogger,
	)
	if err != nil {
		panic(fmt.Errorf("failed to create watermill router: %w", err))
	}

	httpServer := http.NewServer(
		addr,
		commandBus,
		registryRepo,
		organizationsRepo,
		ticketsRepo,
		accountsRepo,
		salesReadModel,
	)

	return Service{
		db:              db,
		watermillRouter: watermillRouter,
		httpServer:      httpServer,
		commandBus:      commandBus,
		sweepAuthority:  sweepAuthority,
		sweepInterval:   sweepInterval,
	}
}

func (s Service) Run(ctx context.Context) error {
	if err := db.InitializeDatabaseSchema(s.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.watermillRouter.Run(ctx)
	})

	g.Go(func() error {
		// don't start HTTP server before Watermill router (so service won't be healthy before it's ready)
		<-s.watermillRouter.Running()

		err := s.httpServer.Run(ctx)
		if err != nil {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-s.watermillRouter.Running()

		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				err := s.commandBus.Send(ctx, &entity.SweepEventStatuses{
					Header:    entity.NewEventHeader(),
					Authority: s.sweepAuthority,
				})
				if err != nil {
					log.FromContext(ctx).WithError(err).Error("failed to send sweep command")
				}
			}
		}
	})

	return g.Wait()
}
