package read_model_sales

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tixledger/db"
	"tixledger/entity"
)

func TestEventSalesReadModel(t *testing.T) {
	ctx := context.Background()
	container, url := db.StartPostgresContainer()
	defer container.Terminate(ctx)

	t.Setenv("POSTGRES_URL", url)
	dbConn := db.GetDb(t)

	readModel := NewEventSalesReadModel(dbConn)

	eventID := uuid.NewString()
	owner := uuid.NewString()

	t.Run("update before creation spins", func(t *testing.T) {
		err := readModel.OnTicketMinted(ctx, &entity.TicketMinted{
			Header:  entity.NewEventHeader(),
			EventID: eventID,
		})
		assert.Error(t, err)
	})

	created := &entity.EventCreated{
		Header:            entity.NewEventHeader(),
		EventID:           eventID,
		OrganizationOwner: owner,
		Name:              "Night Session",
		StartTime:         time.Now().UTC().Add(time.Hour),
		EndTime:           time.Now().UTC().Add(3 * time.Hour),
		Price:             100,
		MaxCapacity:       5,
	}
	require.NoError(t, readModel.OnEventCreated(ctx, created))

	// duplicate delivery must not reset anything later on
	require.NoError(t, readModel.OnEventCreated(ctx, created))

	t.Run("mint and refund update the totals", func(t *testing.T) {
		require.NoError(t, readModel.OnTicketMinted(ctx, &entity.TicketMinted{
			Header:    entity.NewEventHeader(),
			TicketID:  uuid.NewString(),
			EventID:   eventID,
			PricePaid: 100,
		}))
		require.NoError(t, readModel.OnTicketMinted(ctx, &entity.TicketMinted{
			Header:    entity.NewEventHeader(),
			TicketID:  uuid.NewString(),
			EventID:   eventID,
			PricePaid: 100,
		}))
		require.NoError(t, readModel.OnTicketRefunded(ctx, &entity.TicketRefunded{
			Header:   entity.NewEventHeader(),
			TicketID: uuid.NewString(),
			EventID:  eventID,
			Amount:   100,
		}))

		sales, err := readModel.EventSales(ctx, eventID)
		require.NoError(t, err)

		assert.Equal(t, "Night Session", sales.EventName)
		assert.Equal(t, owner, sales.Organization)
		assert.Equal(t, int64(2), sales.TicketsSold)
		assert.Equal(t, int64(1), sales.TicketsRefunded)
		assert.Equal(t, int64(100), sales.Revenue)
		require.NotNil(t, sales.LastSaleAt)
	})

	t.Run("status change", func(t *testing.T) {
		require.NoError(t, readModel.OnEventStatusChanged(ctx, &entity.EventStatusChanged{
			Header:    entity.NewEventHeader(),
			EventID:   eventID,
			OldStatus: entity.EventStatusUpcoming,
			NewStatus: entity.EventStatusOngoing,
		}))

		sales, err := readModel.EventSales(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, string(entity.EventStatusOngoing), sales.Status)
	})

	t.Run("all sales", func(t *testing.T) {
		all, err := readModel.AllSales(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, eventID, all[0].EventID)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := readModel.EventSales(ctx, uuid.NewString())
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})
}
