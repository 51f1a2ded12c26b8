package read_model_sales

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"tixledger/entity"
)

type EventSalesReadModel struct {
	db *sqlx.DB
}

func NewEventSalesReadModel(db *sqlx.DB) EventSalesReadModel {
	if db == nil {
		panic("db is nil")
	}

	return EventSalesReadModel{db: db}
}

func (r EventSalesReadModel) AllSales(ctx context.Context) ([]entity.EventSales, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT payload FROM read_model_event_sales")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []entity.EventSales
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var sales entity.EventSales
		if err := json.Unmarshal(payload, &sales); err != nil {
			return nil, err
		}

		result = append(result, sales)
	}

	return result, rows.Err()
}

func (r EventSalesReadModel) EventSales(ctx context.Context, eventID string) (entity.EventSales, error) {
	sales, err := r.findByEventID(ctx, eventID, r.db)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.EventSales{}, entity.ErrNotFound
	}
	return sales, err
}

func (r EventSalesReadModel) OnEventCreated(ctx context.Context, event *entity.EventCreated) error {
	// the first event for this id, so we create the read model
	err := r.create(ctx, entity.EventSales{
		EventID:      event.EventID,
		EventName:    event.Name,
		Organization: event.OrganizationOwner,
		Status:       string(entity.EventStatusUpcoming),
		LastUpdate:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("could not create read model: %w", err)
	}

	return nil
}

func (r EventSalesReadModel) OnTicketMinted(ctx context.Context, event *entity.TicketMinted) error {
	return r.update(ctx, event.EventID, func(rm entity.EventSales) (entity.EventSales, error) {
		rm.TicketsSold++
		rm.Revenue += event.PricePaid
		publishedAt := event.Header.PublishedAt
		rm.LastSaleAt = &publishedAt

		return rm, nil
	})
}

func (r EventSalesReadModel) OnTicketRefunded(ctx context.Context, event *entity.TicketRefunded) error {
	return r.update(ctx, event.EventID, func(rm entity.EventSales) (entity.EventSales, error) {
		rm.TicketsRefunded++
		rm.Revenue -= event.Amount

		return rm, nil
	})
}

func (r EventSalesReadModel) OnEventStatusChanged(ctx context.Context, event *entity.EventStatusChanged) error {
	return r.update(ctx, event.EventID, func(rm entity.EventSales) (entity.EventSales, error) {
		rm.Status = string(event.NewStatus)

		return rm, nil
	})
}

func (r EventSalesReadModel) create(ctx context.Context, sales entity.EventSales) error {
	payload, err := json.Marshal(sales)
	if err != nil {
		return err
	}

	// the read model may already exist if events arrived out of order
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO read_model_event_sales (event_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, sales.EventID, payload)
	if err != nil {
		return fmt.Errorf("could not create read model: %w", err)
	}

	return nil
}

func (r EventSalesReadModel) update(
	ctx context.Context,
	eventID string,
	updateFunc func(rm entity.EventSales) (entity.EventSales, error),
) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
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

	rm, err := r.findByEventID(ctx, eventID, tx)
	if errors.Is(err, sql.ErrNoRows) {
		// events arrived out of order, retry until EventCreated lands
		return fmt.Errorf("read model for event %s does not exist yet", eventID)
	} else if err != nil {
		return fmt.Errorf("could not find read model: %w", err)
	}

	updatedRm, err := updateFunc(rm)
	if err != nil {
		return err
	}

	updatedRm.LastUpdate = time.Now()

	payload, err := json.Marshal(updatedRm)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO read_model_event_sales (event_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO UPDATE SET payload = excluded.payload
	`, eventID, payload)
	if err != nil {
		return fmt.Errorf("could not update read model: %w", err)
	}

	return nil
}

func (r EventSalesReadModel) findByEventID(
	ctx context.Context,
	eventID string,
	db interface {
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	},
) (entity.EventSales, error) {
	var payload []byte

	err := db.QueryRowContext(
		ctx,
		"SELECT payload FROM read_model_event_sales WHERE event_id = $1",
		eventID,
	).Scan(&payload)
	if err != nil {
		return entity.EventSales{}, err
	}

	var rm entity.EventSales
	if err := json.Unmarshal(payload, &rm); err != nil {
		return entity.EventSales{}, err
	}

	return rm, nil
}
