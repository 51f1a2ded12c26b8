package tickets

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tixledger/db"
	"tixledger/db/accounts"
	"tixledger/db/organizations"
	"tixledger/db/registry"
	"tixledger/entity"
	"tixledger/gateway"
)

type fixture struct {
	authority    string
	owner        string
	accountsRepo *accounts.PostgresRepository
	orgsRepo     *organizations.PostgresRepository
	repo         *PostgresRepository
}

func setupFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	dbConn := db.GetDb(t)

	authority := uuid.NewString()
	registryRepo := registry.NewPostgresRepository(dbConn, &gateway.KycMock{}, registry.DefaultLimits())
	_ = registryRepo.Initialize(ctx, authority)

	orgsRepo := organizations.NewPostgresRepository(dbConn, registryRepo)
	owner := uuid.NewString()
	require.NoError(t, orgsRepo.Initialize(ctx, owner, "Blue Note", "https://example.com/meta.json"))

	accountsRepo := accounts.NewPostgresRepository(dbConn)
	repo := NewPostgresRepository(dbConn, accountsRepo)
	_ = repo.Initialize(ctx, authority)

	return fixture{
		authority:    authority,
		owner:        owner,
		accountsRepo: accountsRepo,
		orgsRepo:     orgsRepo,
		repo:         repo,
	}
}

func (f fixture) createEvent(t *testing.T, price, capacity int64) entity.Event {
	t.Helper()

	start := time.Now().UTC().Add(time.Hour)
	event, err := f.orgsRepo.CreateEvent(context.Background(), f.owner, organizations.CreateEventParams{
		Name:        "Night Session",
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		Price:       price,
		MaxCapacity: capacity,
	})
	require.NoError(t, err)
	return event
}

func (f fixture) fundedBuyer(t *testing.T, amount int64) string {
	t.Helper()

	buyer := uuid.NewString()
	require.NoError(t, f.accountsRepo.Deposit(context.Background(), buyer, amount))
	return buyer
}

func (f fixture) assertCounterInvariant(t *testing.T, eventID string) {
	t.Helper()

	event, err := f.orgsRepo.GetEvent(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, event.MaxCapacity, event.TicketsMinted+event.RemainingTickets)
	assert.GreaterOrEqual(t, event.RemainingTickets, int64(0))
}

func TestPostgresRepository(t *testing.T) {
	ctx := context.Background()
	container, url := db.StartPostgresContainer()
	defer container.Terminate(ctx)

	t.Setenv("POSTGRES_URL", url)
	db.GetDb(t)

	f := setupFixture(t)

	t.Run("initialize twice fails", func(t *testing.T) {
		err := f.repo.Initialize(ctx, f.authority)
		assert.ErrorIs(t, err, entity.ErrAlreadyInitialized)
	})

	t.Run("mint", func(t *testing.T) {
		event := f.createEvent(t, 100, 5)
		buyer := f.fundedBuyer(t, 150)

		ticket, err := f.repo.Mint(ctx, buyer, event.ID, 100)
		require.NoError(t, err)

		assert.Equal(t, event.ID, ticket.EventID)
		assert.Equal(t, buyer, ticket.Buyer)
		assert.Equal(t, int64(100), ticket.PricePaid)
		assert.True(t, ticket.Valid())
		assert.Positive(t, ticket.TicketNumber)

		buyerBalance, err := f.accountsRepo.Balance(ctx, buyer)
		require.NoError(t, err)
		assert.Equal(t, int64(50), buyerBalance)

		eventBalance, err := f.accountsRepo.Balance(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), eventBalance)

		updated, err := f.orgsRepo.GetEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), updated.TicketsMinted)
		assert.Equal(t, int64(4), updated.RemainingTickets)
		f.assertCounterInvariant(t, event.ID)

		t.Run("second mint for the same buyer fails", func(t *testing.T) {
			require.NoError(t, f.accountsRepo.Deposit(ctx, buyer, 100))
			_, err := f.repo.Mint(ctx, buyer, event.ID, 100)
			assert.ErrorIs(t, err, entity.ErrConflict)
			f.assertCounterInvariant(t, event.ID)
		})

		t.Run("ticket numbers are sequential", func(t *testing.T) {
			other := f.fundedBuyer(t, 100)
			next, err := f.repo.Mint(ctx, other, event.ID, 100)
			require.NoError(t, err)
			assert.Equal(t, ticket.TicketNumber+1, next.TicketNumber)
		})
	})

	t.Run("mint preconditions", func(t *testing.T) {
		event := f.createEvent(t, 100, 1)

		t.Run("unknown event", func(t *testing.T) {
			_, err := f.repo.Mint(ctx, f.fundedBuyer(t, 100), uuid.NewString(), 100)
			assert.ErrorIs(t, err, entity.ErrInvalidEventID)
		})

		t.Run("amount below price", func(t *testing.T) {
			_, err := f.repo.Mint(ctx, f.fundedBuyer(t, 100), event.ID, 99)
			assert.ErrorIs(t, err, entity.ErrInsufficientPayment)
		})

		t.Run("unfunded buyer", func(t *testing.T) {
			_, err := f.repo.Mint(ctx, f.fundedBuyer(t, 10), event.ID, 100)
			assert.ErrorIs(t, err, entity.ErrInsufficientPayment)
			f.assertCounterInvariant(t, event.ID)
		})

		t.Run("sold out", func(t *testing.T) {
			_, err := f.repo.Mint(ctx, f.fundedBuyer(t, 100), event.ID, 100)
			require.NoError(t, err)

			_, err = f.repo.Mint(ctx, f.fundedBuyer(t, 100), event.ID, 100)
			assert.ErrorIs(t, err, entity.ErrEventSoldOut)
			f.assertCounterInvariant(t, event.ID)
		})

		t.Run("ended event", func(t *testing.T) {
			ended := f.createEvent(t, 100, 5)

			f.repo.now = func() time.Time { return ended.EndTime.Add(time.Minute) }
			defer func() {
				f.repo.now = func() time.Time { return time.Now().UTC() }
			}()

			_, err := f.repo.Mint(ctx, f.fundedBuyer(t, 100), ended.ID, 100)
			assert.ErrorIs(t, err, entity.ErrEventEnded)
		})
	})

	t.Run("use", func(t *testing.T) {
		event := f.createEvent(t, 100, 5)
		buyer := f.fundedBuyer(t, 100)
		ticket, err := f.repo.Mint(ctx, buyer, event.ID, 100)
		require.NoError(t, err)

		t.Run("requires the manager authority", func(t *testing.T) {
			err := f.repo.Use(ctx, uuid.NewString(), ticket.ID, event.ID, buyer)
			assert.ErrorIs(t, err, entity.ErrUnauthorized)
		})

		t.Run("rejects owner mismatch", func(t *testing.T) {
			err := f.repo.Use(ctx, f.authority, ticket.ID, event.ID, uuid.NewString())
			assert.ErrorIs(t, err, entity.ErrInvalidTicketOwner)
		})

		t.Run("is irreversible", func(t *testing.T) {
			require.NoError(t, f.repo.Use(ctx, f.authority, ticket.ID, event.ID, buyer))

			used, err := f.repo.Get(ctx, ticket.ID)
			require.NoError(t, err)
			assert.True(t, used.Used)

			err = f.repo.Use(ctx, f.authority, ticket.ID, event.ID, buyer)
			assert.ErrorIs(t, err, entity.ErrTicketAlreadyUsed)
		})

		t.Run("refund after use fails", func(t *testing.T) {
			err := f.repo.Refund(ctx, f.authority, ticket.ID, event.ID, buyer, 100)
			assert.ErrorIs(t, err, entity.ErrTicketAlreadyUsed)
		})
	})

	t.Run("refund", func(t *testing.T) {
		event := f.createEvent(t, 100, 5)
		buyer := f.fundedBuyer(t, 100)
		ticket, err := f.repo.Mint(ctx, buyer, event.ID, 100)
		require.NoError(t, err)

		t.Run("must match the price paid", func(t *testing.T) {
			err := f.repo.Refund(ctx, f.authority, ticket.ID, event.ID, buyer, 50)
			assert.ErrorIs(t, err, entity.ErrInsufficientPayment)
		})

		t.Run("reverses payment and releases capacity", func(t *testing.T) {
			require.NoError(t, f.repo.Refund(ctx, f.authority, ticket.ID, event.ID, buyer, 100))

			buyerBalance, err := f.accountsRepo.Balance(ctx, buyer)
			require.NoError(t, err)
			assert.Equal(t, int64(100), buyerBalance)

			eventBalance, err := f.accountsRepo.Balance(ctx, event.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(0), eventBalance)

			updated, err := f.orgsRepo.GetEvent(ctx, event.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(0), updated.TicketsMinted)
			assert.Equal(t, int64(5), updated.RemainingTickets)
			f.assertCounterInvariant(t, event.ID)
		})

		t.Run("is terminal", func(t *testing.T) {
			err := f.repo.Refund(ctx, f.authority, ticket.ID, event.ID, buyer, 100)
			assert.ErrorIs(t, err, entity.ErrTicketRefunded)

			err = f.repo.Use(ctx, f.authority, ticket.ID, event.ID, buyer)
			assert.ErrorIs(t, err, entity.ErrTicketRefunded)
		})
	})

	t.Run("concurrent mints never oversell", func(t *testing.T) {
		const capacity = 3
		const buyers = 10

		event := f.createEvent(t, 100, capacity)

		buyerIDs := make([]string, buyers)
		for i := range buyerIDs {
			buyerIDs[i] = f.fundedBuyer(t, 100)
		}

		var wg sync.WaitGroup
		results := make(chan error, buyers)

		for _, buyer := range buyerIDs {
			buyer := buyer
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.repo.Mint(ctx, buyer, event.ID, 100)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var succeeded int
		for err := range results {
			if err == nil {
				succeeded++
			}
		}

		assert.LessOrEqual(t, succeeded, capacity)

		updated, err := f.orgsRepo.GetEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, updated.TicketsMinted, int64(capacity))
		f.assertCounterInvariant(t, event.ID)

		minted, err := f.repo.FindByEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Len(t, minted, succeeded)
	})
}
