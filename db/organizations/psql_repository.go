package organizations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"tixledger/entity"
	"tixledger/pubsub/outbox"
)

// EventsIndex is the registry-side bucket index. Cross-component writes run
// inside the organization store's transaction so the event row and its
// bucket membership never disagree.
type EventsIndex interface {
	RegisterEventTx(ctx context.Context, tx *sqlx.Tx, eventID string) error
	MoveEventTx(ctx context.Context, tx *sqlx.Tx, eventID string, newStatus entity.EventStatus) (entity.EventStatus, error)
}

type CreateEventParams struct {
	Name              string
	Description       string
	Location          string
	StartTime         time.Time
	EndTime           time.Time
	Price             int64
	MaxCapacity       int64
	TicketMetadataURI string
}

type PostgresRepository struct {
	db    *sqlx.DB
	index EventsIndex
	now   func() time.Time
}

func NewPostgresRepository(db *sqlx.DB, index EventsIndex) *PostgresRepository {
	if db == nil {
		panic("db is nil")
	}
	if index == nil {
		panic("events index is nil")
	}

	return &PostgresRepository{
		db:    db,
		index: index,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Initialize creates the one organization record an owner identity may hold.
func (r *PostgresRepository) Initialize(ctx context.Context, owner, name, metadataURI string) error {
	if name == "" || len(name) > entity.MaxOrganizationNameLen {
		return entity.ErrInvalidName
	}
	if metadataURI == "" {
		return entity.ErrInvalidMetadataURI
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (owner, name, metadata_uri, event_count)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT DO NOTHING
	`, owner, name, metadataURI)
	if err != nil {
		return fmt.Errorf("could not initialize organization: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return entity.ErrAlreadyInitialized
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, owner string) (entity.Organization, error) {
	var org entity.Organization
	err := r.db.GetContext(ctx, &org, `
		SELECT owner, name, metadata_uri, event_count
		FROM organizations
		WHERE owner = $1
	`, owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Organization{}, entity.ErrOrganizationNotFound
		}
		return entity.Organization{}, fmt.Errorf("could not get organization: %w", err)
	}

	return org, nil
}

// UpdateMetadata replaces the mutable fields only; the owner identity and
// the event catalog are untouched.
func (r *PostgresRepository) UpdateMetadata(ctx context.Context, owner, name, metadataURI string) error {
	if name == "" || len(name) > entity.MaxOrganizationNameLen {
		return entity.ErrInvalidName
	}
	if metadataURI == "" {
		return entity.ErrInvalidMetadataURI
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE organizations SET name = $2, metadata_uri = $3 WHERE owner = $1
	`, owner, name, metadataURI)
	if err != nil {
		return fmt.Errorf("could not update organization: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return entity.ErrOrganizationNotFound
	}

	return nil
}

// CreateEvent allocates a new event keyed by (organization, event sequence)
// and inserts it into the Upcoming bucket. One unit of work: if the bucket
// is full the whole creation rolls back, including the catalog append.
func (r *PostgresRepository) CreateEvent(
	ctx context.Context,
	owner string,
	params CreateEventParams,
) (event entity.Event, err error) {
	now := r.now()
	if !params.StartTime.After(now) || !params.EndTime.After(params.StartTime) {
		return entity.Event{}, entity.ErrInvalidEventDate
	}
	if params.MaxCapacity <= 0 {
		return entity.Event{}, entity.ErrEventAtCapacity
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return entity.Event{}, fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			err = errors.Join(err, rollbackErr)
			return
		}
		err = tx.Commit()
	}()

	var org entity.Organization
	err = tx.GetContext(ctx, &org, `
		SELECT owner, name, metadata_uri, event_count
		FROM organizations
		WHERE owner = $1
		FOR UPDATE
	`, owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Event{}, entity.ErrOrganizationNotFound
		}
		return entity.Event{}, fmt.Errorf("could not get organization: %w", err)
	}

	event = entity.Event{
		ID:                uuid.NewString(),
		OrganizationOwner: owner,
		OrgEventSeq:       org.EventCount,
		Name:              params.Name,
		Description:       params.Description,
		Location:          params.Location,
		StartTime:         params.StartTime,
		EndTime:           params.EndTime,
		Price:             params.Price,
		MaxCapacity:       params.MaxCapacity,
		RemainingTickets:  params.MaxCapacity,
		TicketsMinted:     0,
		Status:            entity.EventStatusUpcoming,
		TicketMetadataURI: params.TicketMetadataURI,
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO events (
			event_id, organization_owner, org_event_seq, name, description, location,
			start_time, end_time, price, max_capacity, remaining_tickets, tickets_minted,
			status, ticket_metadata_uri
		) VALUES (
			:event_id, :organization_owner, :org_event_seq, :name, :description, :location,
			:start_time, :end_time, :price, :max_capacity, :remaining_tickets, :tickets_minted,
			:status, :ticket_metadata_uri
		)
	`, event)
	if err != nil {
		return entity.Event{}, fmt.Errorf("could not add event: %w", err)
	}

	// The event's receiving account for ticket payments.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (account_id, balance) VALUES ($1, 0)
		ON CONFLICT DO NOTHING
	`, event.ID)
	if err != nil {
		return entity.Event{}, fmt.Errorf("could not create event account: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE organizations SET event_count = event_count + 1 WHERE owner = $1
	`, owner)
	if err != nil {
		return entity.Event{}, fmt.Errorf("could not update event count: %w", err)
	}

	if err = r.index.RegisterEventTx(ctx, tx, event.ID); err != nil {
		return entity.Event{}, err
	}

	eventBus, err := outbox.NewEventBusForTx(ctx, tx)
	if err != nil {
		return entity.Event{}, err
	}

	err = eventBus.Publish(ctx, entity.EventCreated{
		Header:            entity.NewEventHeader(),
		EventID:           event.ID,
		OrganizationOwner: owner,
		Name:              event.Name,
		StartTime:         event.StartTime,
		EndTime:           event.EndTime,
		Price:             event.Price,
		MaxCapacity:       event.MaxCapacity,
	})
	if err != nil {
		return entity.Event{}, fmt.Errorf("could not publish event: %w", err)
	}

	log.FromContext(ctx).
		WithField("event_id", event.ID).
		WithField("organization", owner).
		Info("Event created")

	return event, nil
}

func (r *PostgresRepository) GetEvent(ctx context.Context, eventID string) (entity.Event, error) {
	var event entity.Event
	err := r.db.GetContext(ctx, &event, `
		SELECT event_id, organization_owner, org_event_seq, name, description, location,
			start_time, end_time, price, max_capacity, remaining_tickets, tickets_minted,
			status, ticket_metadata_uri
		FROM events
		WHERE event_id = $1
	`, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Event{}, entity.ErrEventNotFound
		}
		return entity.Event{}, fmt.Errorf("could not get event: %w", err)
	}

	return event, nil
}

// ListEvents returns the organization's catalog in creation order.
func (r *PostgresRepository) ListEvents(ctx context.Context, owner string) ([]entity.Event, error) {
	var events []entity.Event
	err := r.db.SelectContext(ctx, &events, `
		SELECT event_id, organization_owner, org_event_seq, name, description, location,
			start_time, end_time, price, max_capacity, remaining_tickets, tickets_minted,
			status, ticket_metadata_uri
		FROM events
		WHERE organization_owner = $1
		ORDER BY org_event_seq
	`, owner)
	return events, err
}

// UpdateEventStatus is the organization-side status override. It reuses the
// index move so the status column and bucket membership stay in lockstep.
func (r *PostgresRepository) UpdateEventStatus(
	ctx context.Context,
	owner string,
	eventID string,
	newStatus entity.EventStatus,
) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			err = errors.Join(err, rollbackErr)
			return
		}
		err = tx.Commit()
	}()

	if err = r.authorizeEventTx(ctx, tx, owner, eventID); err != nil {
		return err
	}

	oldStatus, err := r.index.MoveEventTx(ctx, tx, eventID, newStatus)
	if err != nil {
		return err
	}

	if oldStatus == newStatus {
		return nil
	}

	eventBus, err := outbox.NewEventBusForTx(ctx, tx)
	if err != nil {
		return err
	}

	err = eventBus.Publish(ctx, entity.EventStatusChanged{
		Header:    entity.NewEventHeader(),
		EventID:   eventID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})
	if err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	return nil
}

// UpdateEventCapacity resizes an event. The new maximum must cover tickets
// already minted; remaining capacity is recomputed to keep the counter
// invariant intact.
func (r *PostgresRepository) UpdateEventCapacity(
	ctx context.Context,
	owner string,
	eventID string,
	newMaxCapacity int64,
) (err error) {
	if newMaxCapacity <= 0 {
		return entity.ErrEventAtCapacity
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			err = errors.Join(err, rollbackErr)
			return
		}
		err = tx.Commit()
	}()

	var event entity.Event
	err = tx.GetContext(ctx, &event, `
		SELECT event_id, organization_owner, tickets_minted
		FROM events
		WHERE event_id = $1
		FOR UPDATE
	`, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ErrEventNotFound
		}
		return fmt.Errorf("could not get event: %w", err)
	}

	if event.OrganizationOwner != owner {
		return entity.ErrUnauthorized
	}

	if newMaxCapacity < event.TicketsMinted {
		return entity.ErrEventAtCapacity
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE events
		SET max_capacity = $2, remaining_tickets = $2 - tickets_minted
		WHERE event_id = $1
	`, eventID, newMaxCapacity)
	if err != nil {
		return fmt.Errorf("could not update event capacity: %w", err)
	}

	return nil
}

// VerifyTicket is the venue entry gate check: the ticket must belong to the
// event and the presenting buyer, and must be unused. Read only.
func (r *PostgresRepository) VerifyTicket(
	ctx context.Context,
	owner string,
	eventID string,
	ticketID string,
	ticketOwner string,
) error {
	event, err := r.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.OrganizationOwner != owner {
		return entity.ErrUnauthorized
	}

	var ticket entity.Ticket
	err = r.db.GetContext(ctx, &ticket, `
		SELECT ticket_id, event_id, buyer, used, refunded
		FROM tickets
		WHERE ticket_id = $1
	`, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ErrTicketNotFound
		}
		return fmt.Errorf("could not get ticket: %w", err)
	}

	if ticket.EventID != eventID || ticket.Buyer != ticketOwner {
		return entity.ErrInvalidTicketOwner
	}
	if ticket.Refunded {
		return entity.ErrTicketRefunded
	}
	if ticket.Used {
		return entity.ErrTicketAlreadyUsed
	}

	return nil
}

func (r *PostgresRepository) authorizeEventTx(ctx context.Context, tx *sqlx.Tx, owner, eventID string) error {
	var eventOwner string
	err := tx.GetContext(ctx, &eventOwner, `
		SELECT organization_owner FROM events WHERE event_id = $1 FOR UPDATE
	`, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ErrEventNotFound
		}
		return fmt.Errorf("could not get event: %w", err)
	}

	if eventOwner != owner {
		return entity.ErrUnauthorized
	}

	return nil
}
