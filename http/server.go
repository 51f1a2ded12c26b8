package http

import (
	"context"
	"errors"
	"net/http"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"tixledger/db/organizations"
	"tixledger/entity"
)

type RegistryRepository interface {
	Initialize(ctx context.Context, authority string) error
	Get(ctx context.Context) (entity.Registry, error)
	RegisterOrganization(ctx context.Context, owner, name, description string) (entity.OrganizationInfo, error)
	Directory(ctx context.Context) ([]entity.OrganizationInfo, error)
	UpdateEventStatus(ctx context.Context, authority, eventID string, newStatus entity.EventStatus) error
	ListBucket(ctx context.Context, status entity.EventStatus) ([]string, error)
	BucketCounts(ctx context.Context) (map[entity.EventStatus]int, error)
}

type OrganizationsRepository interface {
	Initialize(ctx context.Context, owner, name, metadataURI string) error
	Get(ctx context.Context, owner string) (entity.Organization, error)
	UpdateMetadata(ctx context.Context, owner, name, metadataURI string) error
	CreateEvent(ctx context.Context, owner string, params organizations.CreateEventParams) (entity.Event, error)
	GetEvent(ctx context.Context, eventID string) (entity.Event, error)
	ListEvents(ctx context.Context, owner string) ([]entity.Event, error)
	UpdateEventStatus(ctx context.Context, owner, eventID string, newStatus entity.EventStatus) error
	UpdateEventCapacity(ctx context.Context, owner, eventID string, newMaxCapacity int64) error
	VerifyTicket(ctx context.Context, owner, eventID, ticketID, ticketOwner string) error
}

type TicketsRepository interface {
	Initialize(ctx context.Context, authority string) error
	Mint(ctx context.Context, buyer, eventID string, amount int64) (entity.Ticket, error)
	Use(ctx context.Context, authority, ticketID, eventID, buyer string) error
	Get(ctx context.Context, ticketID string) (entity.Ticket, error)
	FindByEvent(ctx context.Context, eventID string) ([]entity.Ticket, error)
}

type AccountsRepository interface {
	Deposit(ctx context.Context, accountID string, amount int64) error
	Balance(ctx context.Context, accountID string) (int64, error)
}

type SalesReadModel interface {
	AllSales(ctx context.Context) ([]entity.EventSales, error)
	EventSales(ctx context.Context, eventID string) (entity.EventSales, error)
}

type Server struct {
	addr             string
	e                *echo.Echo
	commandBus       *cqrs.CommandBus
	registryRepo     RegistryRepository
	organizationRepo OrganizationsRepository
	ticketsRepo      TicketsRepository
	accountsRepo     AccountsRepository
	salesReadModel   SalesReadModel
}

func NewServer(
	addr string,
	commandBus *cqrs.CommandBus,
	registryRepo RegistryRepository,
	organizationRepo OrganizationsRepository,
	ticketsRepo TicketsRepository,
	accountsRepo AccountsRepository,
	salesReadModel SalesReadModel,
) *Server {
	e := echoHTTP.NewEcho()
	e.Use(otelecho.Middleware("tixledger"))

	server := &Server{
		addr:             addr,
		e:                e,
		commandBus:       commandBus,
		registryRepo:     registryRepo,
		organizationRepo: organizationRepo,
		ticketsRepo:      ticketsRepo,
		accountsRepo:     accountsRepo,
		salesReadModel:   salesReadModel,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/registry", server.PostRegistry)
	e.GET("/registry", server.GetRegistry)
	e.POST("/registry/organizations", server.PostRegisterOrganization)
	e.GET("/registry/organizations", server.GetDirectory)
	e.PUT("/registry/events/:event_id/status", server.PutRegistryEventStatus)
	e.POST("/registry/sweep", server.PostSweep)
	e.GET("/registry/buckets", server.GetBucketCounts)
	e.GET("/registry/buckets/:status", server.GetBucket)

	e.POST("/organizations/:owner", server.PostOrganization)
	e.GET("/organizations/:owner", server.GetOrganization)
	e.PUT("/organizations/:owner", server.PutOrganization)
	e.POST("/organizations/:owner/events", server.PostEvent)
	e.GET("/organizations/:owner/events", server.GetOrganizationEvents)

	e.GET("/events/:event_id", server.GetEvent)
	e.PUT("/events/:event_id/status", server.PutEventStatus)
	e.PUT("/events/:event_id/capacity", server.PutEventCapacity)
	e.POST("/events/:event_id/verify-ticket", server.PostVerifyTicket)
	e.GET("/events/:event_id/tickets", server.GetEventTickets)
	e.GET("/events/:event_id/sales", server.GetEventSales)
	e.GET("/sales", server.GetAllSales)

	e.POST("/ticket-manager", server.PostTicketManager)
	e.POST("/tickets", server.PostMintTicket)
	e.GET("/tickets/:ticket_id", server.GetTicket)
	e.POST("/tickets/:ticket_id/use", server.PostUseTicket)
	e.PUT("/ticket-refund/:ticket_id", server.TicketRefund)

	e.POST("/accounts/:account_id/deposit", server.PostDeposit)
	e.GET("/accounts/:account_id", server.GetAccount)

	return server
}

func (s Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		err := s.e.Shutdown(ctx)
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()
	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
