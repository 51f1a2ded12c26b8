package accounts

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tixledger/db"
	"tixledger/entity"
)

func TestPostgresRepository(t *testing.T) {
	ctx := context.Background()
	container, url := db.StartPostgresContainer()
	defer container.Terminate(ctx)

	t.Setenv("POSTGRES_URL", url)
	dbConn := db.GetDb(t)
	repo := NewPostgresRepository(dbConn)

	t.Run("deposit accumulates", func(t *testing.T) {
		account := uuid.NewString()

		require.NoError(t, repo.Deposit(ctx, account, 100))
		require.NoError(t, repo.Deposit(ctx, account, 50))

		balance, err := repo.Balance(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, int64(150), balance)
	})

	t.Run("balance of unknown account is zero", func(t *testing.T) {
		balance, err := repo.Balance(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})

	t.Run("transfer moves funds", func(t *testing.T) {
		from := uuid.NewString()
		to := uuid.NewString()
		require.NoError(t, repo.Deposit(ctx, from, 200))

		tx, err := dbConn.BeginTxx(ctx, &sql.TxOptions{})
		require.NoError(t, err)

		require.NoError(t, repo.TransferTx(ctx, tx, from, to, 80))
		require.NoError(t, tx.Commit())

		fromBalance, err := repo.Balance(ctx, from)
		require.NoError(t, err)
		assert.Equal(t, int64(120), fromBalance)

		toBalance, err := repo.Balance(ctx, to)
		require.NoError(t, err)
		assert.Equal(t, int64(80), toBalance)
	})

	t.Run("transfer exceeding balance fails", func(t *testing.T) {
		from := uuid.NewString()
		require.NoError(t, repo.Deposit(ctx, from, 10))

		tx, err := dbConn.BeginTxx(ctx, &sql.TxOptions{})
		require.NoError(t, err)
		defer tx.Rollback()

		err = repo.TransferTx(ctx, tx, from, uuid.NewString(), 11)
		assert.ErrorIs(t, err, entity.ErrInsufficientPayment)
	})
}
