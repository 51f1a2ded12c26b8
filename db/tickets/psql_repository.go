package tickets

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
	"tixledger/metrics"
	"tixledger/pubsub/outbox"
)

// Accounts is the balance-transfer substrate, invoked inside the engine's
// transaction so payment and capacity changes commit together.
type Accounts interface {
	TransferTx(ctx context.Context, tx *sqlx.Tx, from, to string, amount int64) error
}

type PostgresRepository struct {
	db       *sqlx.DB
	accounts Accounts
	now      func() time.Time
}

func NewPostgresRepository(db *sqlx.DB, accounts Accounts) *PostgresRepository {
	if db == nil {
		panic("db is nil")
	}
	if accounts == nil {
		panic("accounts is nil")
	}

	return &PostgresRepository{
		db:       db,
		accounts: accounts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Initialize creates the engine singleton holding the global ticket-sequence
// counter. A second call fails.
func (r *PostgresRepository) Initialize(ctx context.Context, authority string) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO ticket_manager (singleton, authority, ticket_count)
		VALUES (TRUE, $1, 0)
		ON CONFLICT DO NOTHING
	`, authority)
	if err != nil {
		return fmt.Errorf("could not initialize ticket manager: %w", err)
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

func (r *PostgresRepository) Manager(ctx context.Context) (entity.TicketManager, error) {
	var manager entity.TicketManager
	err := r.db.GetContext(ctx, &manager, `
		SELECT authority, ticket_count FROM ticket_manager
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.TicketManager{}, entity.ErrNotFound
		}
		return entity.TicketManager{}, fmt.Errorf("could not get ticket manager: %w", err)
	}

	return manager, nil
}

// Mint sells one ticket. Preconditions run in order: the event must exist,
// must not have ended, must have capacity left, and the payment must cover
// the price. The payment, the counters and the ticket row commit in one
// transaction, so overselling is impossible regardless of how many buyers
// race for the last ticket.
func (r *PostgresRepository) Mint(
	ctx context.Context,
	buyer string,
	eventID string,
	amount int64,
) (ticket entity.Ticket, err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			err = errors.Join(err, rollbackErr)
			return
		}
		if err = tx.Commit(); err == nil {
			metrics.TicketsMinted.Inc()
		}
	}()

	var event entity.Event
	err = tx.GetContext(ctx, &event, `
		SELECT event_id, end_time, price, remaining_tickets
		FROM events
		WHERE event_id = $1
		FOR UPDATE
	`, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Ticket{}, entity.ErrInvalidEventID
		}
		return entity.Ticket{}, fmt.Errorf("could not get event: %w", err)
	}

	if event.Ended(r.now()) {
		return entity.Ticket{}, entity.ErrEventEnded
	}
	if event.RemainingTickets <= 0 {
		return entity.Ticket{}, entity.ErrEventSoldOut
	}
	if amount < event.Price {
		return entity.Ticket{}, entity.ErrInsufficientPayment
	}

	if err = r.accounts.TransferTx(ctx, tx, buyer, eventID, amount); err != nil {
		return entity.Ticket{}, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE events
		SET tickets_minted = tickets_minted + 1, remaining_tickets = remaining_tickets - 1
		WHERE event_id = $1 AND remaining_tickets > 0
	`, eventID)
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not update event capacity: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return entity.Ticket{}, err
	}
	if rows == 0 {
		return entity.Ticket{}, entity.ErrEventSoldOut
	}

	var ticketNumber int64
	err = tx.GetContext(ctx, &ticketNumber, `
		UPDATE ticket_manager SET ticket_count = ticket_count + 1 RETURNING ticket_count
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Ticket{}, entity.ErrNotFound
		}
		return entity.Ticket{}, fmt.Errorf("could not advance ticket counter: %w", err)
	}

	ticket = entity.Ticket{
		ID:           uuid.NewString(),
		EventID:      eventID,
		Buyer:        buyer,
		TicketNumber: ticketNumber,
		PricePaid:    amount,
		PurchasedAt:  r.now(),
		Used:         false,
	}

	res, err = tx.NamedExecContext(ctx, `
		INSERT INTO tickets (ticket_id, event_id, buyer, ticket_number, price_paid, purchased_at, used, refunded)
		VALUES (:ticket_id, :event_id, :buyer, :ticket_number, :price_paid, :purchased_at, :used, :refunded)
		ON CONFLICT (event_id, buyer) DO NOTHING
	`, ticket)
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not add ticket: %w", err)
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return entity.Ticket{}, err
	}
	if rows == 0 {
		// One active ticket per (event, buyer).
		return entity.Ticket{}, entity.ErrConflict
	}

	eventBus, err := outbox.NewEventBusForTx(ctx, tx)
	if err != nil {
		return entity.Ticket{}, err
	}

	err = eventBus.Publish(ctx, entity.TicketMinted{
		Header:       entity.NewEventHeader(),
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		EventID:      eventID,
		Buyer:        buyer,
		PricePaid:    amount,
	})
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not publish event: %w", err)
	}

	log.FromContext(ctx).
		WithField("ticket_id", ticket.ID).
		WithField("event_id", eventID).
		Info("Ticket minted")

	return ticket, nil
}

// Use marks a ticket as consumed for entry. Irreversible; a used ticket can
// never be used again or refunded.
func (r *PostgresRepository) Use(
	ctx context.Context,
	authority string,
	ticketID string,
	eventID string,
	buyer string,
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

	if err = r.authorizeTx(ctx, tx, authority); err != nil {
		return err
	}

	ticket, err := r.getTicketTx(ctx, tx, ticketID)
	if err != nil {
		return err
	}

	if ticket.EventID != eventID || ticket.Buyer != buyer {
		return entity.ErrInvalidTicketOwner
	}
	if ticket.Refunded {
		return entity.ErrTicketRefunded
	}
	if ticket.Used {
		return entity.ErrTicketAlreadyUsed
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tickets SET used = TRUE WHERE ticket_id = $1
	`, ticketID)
	if err != nil {
		return fmt.Errorf("could not mark ticket used: %w", err)
	}

	eventBus, err := outbox.NewEventBusForTx(ctx, tx)
	if err != nil {
		return err
	}

	err = eventBus.Publish(ctx, entity.TicketUsed{
		Header:   entity.NewEventHeader(),
		TicketID: ticketID,
		EventID:  eventID,
	})
	if err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	return nil
}

// Refund reverses an unused ticket: the payment flows back to the buyer,
// capacity is released, and the ticket reaches its other terminal state.
// Refunds are full-refund-only; the requested amount must equal the price
// paid at mint.
func (r *PostgresRepository) Refund(
	ctx context.Context,
	authority string,
	ticketID string,
	eventID string,
	buyer string,
	amount int64,
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
		if err = tx.Commit(); err == nil {
			metrics.TicketsRefunded.Inc()
		}
	}()

	if err = r.authorizeTx(ctx, tx, authority); err != nil {
		return err
	}

	ticket, err := r.getTicketTx(ctx, tx, ticketID)
	if err != nil {
		return err
	}

	if ticket.EventID != eventID || ticket.Buyer != buyer {
		return entity.ErrInvalidTicketOwner
	}
	if ticket.Used {
		return entity.ErrTicketAlreadyUsed
	}
	if ticket.Refunded {
		return entity.ErrTicketRefunded
	}
	if amount != ticket.PricePaid {
		return entity.ErrInsufficientPayment
	}

	// Lock the event row before touching its counters.
	var eventExists string
	err = tx.GetContext(ctx, &eventExists, `
		SELECT event_id FROM events WHERE event_id = $1 FOR UPDATE
	`, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ErrInvalidEventID
		}
		return fmt.Errorf("could not get event: %w", err)
	}

	if err = r.accounts.TransferTx(ctx, tx, eventID, buyer, amount); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE events
		SET tickets_minted = tickets_minted - 1, remaining_tickets = remaining_tickets + 1
		WHERE event_id = $1
	`, eventID)
	if err != nil {
		return fmt.Errorf("could not release event capacity: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tickets SET refunded = TRUE WHERE ticket_id = $1
	`, ticketID)
	if err != nil {
		return fmt.Errorf("could not mark ticket refunded: %w", err)
	}

	eventBus, err := outbox.NewEventBusForTx(ctx, tx)
	if err != nil {
		return err
	}

	err = eventBus.Publish(ctx, entity.TicketRefunded{
		Header:   entity.NewEventHeader(),
		TicketID: ticketID,
		EventID:  eventID,
		Buyer:    buyer,
		Amount:   amount,
	})
	if err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	log.FromContext(ctx).
		WithField("ticket_id", ticketID).
		WithField("event_id", eventID).
		Info("Ticket refunded")

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, ticketID string) (entity.Ticket, error) {
	var ticket entity.Ticket
	err := r.db.GetContext(ctx, &ticket, `
		SELECT ticket_id, event_id, buyer, ticket_number, price_paid, purchased_at, used, refunded
		FROM tickets
		WHERE ticket_id = $1
	`, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Ticket{}, entity.ErrTicketNotFound
		}
		return entity.Ticket{}, fmt.Errorf("could not get ticket: %w", err)
	}

	return ticket, nil
}

func (r *PostgresRepository) GetByEventAndBuyer(ctx context.Context, eventID, buyer string) (entity.Ticket, error) {
	var ticket entity.Ticket
	err := r.db.GetContext(ctx, &ticket, `
		SELECT ticket_id, event_id, buyer, ticket_number, price_paid, purchased_at, used, refunded
		FROM tickets
		WHERE event_id = $1 AND buyer = $2
	`, eventID, buyer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Ticket{}, entity.ErrTicketNotFound
		}
		return entity.Ticket{}, fmt.Errorf("could not get ticket: %w", err)
	}

	return ticket, nil
}

func (r *PostgresRepository) FindByEvent(ctx context.Context, eventID string) ([]entity.Ticket, error) {
	var tickets []entity.Ticket
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT ticket_id, event_id, buyer, ticket_number, price_paid, purchased_at, used, refunded
		FROM tickets
		WHERE event_id = $1
		ORDER BY ticket_number
	`, eventID)
	return tickets, err
}

func (r *PostgresRepository) authorizeTx(ctx context.Context, tx *sqlx.Tx, authority string) error {
	var managerAuthority string
	err := tx.GetContext(ctx, &managerAuthority, `
		SELECT authority FROM ticket_manager
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ErrNotFound
		}
		return fmt.Errorf("could not get ticket manager: %w", err)
	}

	if managerAuthority != authority {
		return entity.ErrUnauthorized
	}

	return nil
}

func (r *PostgresRepository) getTicketTx(ctx context.Context, tx *sqlx.Tx, ticketID string) (entity.Ticket, error) {
	var ticket entity.Ticket
	err := tx.GetContext(ctx, &ticket, `
		SELECT ticket_id, event_id, buyer, ticket_number, price_paid, purchased_at, used, refunded
		FROM tickets
		WHERE ticket_id = $1
		FOR UPDATE
	`, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Ticket{}, entity.ErrTicketNotFound
		}
		return entity.Ticket{}, fmt.Errorf("could not get ticket: %w", err)
	}

	return ticket, nil
}
