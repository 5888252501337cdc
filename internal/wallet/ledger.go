package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger applies wallet operations atomically against the profile balances
// and the transaction log. Every operation takes an idempotency key; an
// empty key gets a generated one, a repeated key replays the original
// transaction without touching the balance again.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a ledger on top of an open database.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Topup credits amount to the profile's balance.
func (l *Ledger) Topup(ctx context.Context, profileID int64, currency string, amount float64, description, idempotencyKey string) (*Transaction, error) {
	if description == "" {
		description = "Пополнение баланса"
	}
	return l.apply(ctx, profileID, currency, DirectionCredit, amount, description, idempotencyKey, nil)
}

// Withdraw debits amount from the profile's balance. Fails with
// ErrInsufficientFunds when the balance cannot cover it.
func (l *Ledger) Withdraw(ctx context.Context, profileID int64, currency string, amount float64, description, idempotencyKey string) (*Transaction, error) {
	if description == "" {
		description = "Списание средств"
	}
	return l.apply(ctx, profileID, currency, DirectionDebit, amount, description, idempotencyKey, nil)
}

// Balances reads the profile's current wallet state.
func (l *Ledger) Balances(ctx context.Context, profileID int64) (Balances, error) {
	var b Balances
	err := l.db.QueryRowContext(ctx,
		`SELECT stars_balance, calocoin_balance FROM profiles WHERE id = ?`, profileID).
		Scan(&b.Stars, &b.Calocoin)
	if err != nil {
		return Balances{}, fmt.Errorf("read balances: %w", err)
	}
	return b, nil
}

// ListTransactions returns the newest ledger entries for a profile.
func (l *Ledger) ListTransactions(ctx context.Context, profileID int64, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, profile_id, currency, direction, amount, balance_before, balance_after,
			description, idempotency_key, order_id, occurred_at
		FROM wallet_transactions WHERE profile_id = ? ORDER BY id DESC LIMIT ?`,
		profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func (l *Ledger) apply(ctx context.Context, profileID int64, currency, direction string, amount float64, description, idempotencyKey string, orderID *int64) (*Transaction, error) {
	normalized, err := normalizeAmount(currency, amount)
	if err != nil {
		return nil, err
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin wallet tx: %w", err)
	}
	defer tx.Rollback()

	// Replay: a known key returns the original entry untouched.
	existing, err := findTransaction(ctx, tx, profileID, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	balanceColumn := "calocoin_balance"
	if currency == CurrencyStars {
		balanceColumn = "stars_balance"
	}

	var before float64
	err = tx.QueryRowContext(ctx,
		`SELECT `+balanceColumn+` FROM profiles WHERE id = ?`, profileID).Scan(&before)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	var after float64
	switch direction {
	case DirectionCredit:
		after = before + normalized
	case DirectionDebit:
		if before < normalized {
			return nil, ErrInsufficientFunds
		}
		after = before - normalized
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE profiles SET `+balanceColumn+` = ?, updated_at = ? WHERE id = ?`,
		after, time.Now().UTC(), profileID)
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	var orderRef any
	if orderID != nil {
		orderRef = *orderID
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (profile_id, currency, direction, amount,
			balance_before, balance_after, description, idempotency_key, order_id, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profileID, currency, direction, normalized, before, after, description,
		idempotencyKey, orderRef, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	txID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit wallet tx: %w", err)
	}

	return &Transaction{
		ID:             txID,
		ProfileID:      profileID,
		Currency:       currency,
		Direction:      direction,
		Amount:         normalized,
		BalanceBefore:  before,
		BalanceAfter:   after,
		Description:    description,
		IdempotencyKey: idempotencyKey,
		OrderID:        orderID,
		OccurredAt:     time.Now().UTC(),
	}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findTransaction(ctx context.Context, q queryRower, profileID int64, key string) (*Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, profile_id, currency, direction, amount, balance_before, balance_after,
			description, idempotency_key, order_id, occurred_at
		FROM wallet_transactions WHERE profile_id = ? AND idempotency_key = ?`,
		profileID, key)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup transaction: %w", err)
	}
	return tx, nil
}

func scanTransaction(row interface{ Scan(...any) error }) (*Transaction, error) {
	var (
		tx      Transaction
		orderID sql.NullInt64
	)
	err := row.Scan(&tx.ID, &tx.ProfileID, &tx.Currency, &tx.Direction, &tx.Amount,
		&tx.BalanceBefore, &tx.BalanceAfter, &tx.Description, &tx.IdempotencyKey,
		&orderID, &tx.OccurredAt)
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		tx.OrderID = &orderID.Int64
	}
	return &tx, nil
}
