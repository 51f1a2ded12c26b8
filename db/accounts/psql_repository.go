package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tixledger/entity"
)

// PostgresRepository is the balance-transfer substrate. Transfers run inside
// the caller's transaction, so a payment is atomic with the capacity and
// ticket writes surrounding it.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	if db == nil {
		panic("db is nil")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Deposit(ctx context.Context, accountID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (account_id, balance) VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance
	`, accountID, amount)
	if err != nil {
		return fmt.Errorf("could not deposit: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance, `
		SELECT balance FROM accounts WHERE account_id = $1
	`, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("could not get balance: %w", err)
	}

	return balance, nil
}

// TransferTx debits `from` and credits `to` within the given transaction.
// A debit the source cannot cover fails the whole transfer.
func (r *PostgresRepository) TransferTx(ctx context.Context, tx *sqlx.Tx, from, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET balance = balance - $2
		WHERE account_id = $1 AND balance >= $2
	`, from, amount)
	if err != nil {
		return fmt.Errorf("could not debit account: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return entity.ErrInsufficientPayment
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (account_id, balance) VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance
	`, to, amount)
	if err != nil {
		return fmt.Errorf("could not credit account: %w", err)
	}

	return nil
}
