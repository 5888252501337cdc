package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateOrder records a pending order. planID may be nil for purchases not
// tied to a menu plan.
func (l *Ledger) CreateOrder(ctx context.Context, profileID int64, planID *int64, title, currency string, amount float64) (*Order, error) {
	normalized, err := normalizeAmount(currency, amount)
	if err != nil {
		return nil, err
	}

	var planRef any
	if planID != nil {
		planRef = *planID
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO orders (profile_id, plan_id, title, currency, amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		profileID, planRef, title, currency, normalized, OrderPendingPayment, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return l.GetOrder(ctx, profileID, orderID)
}

// GetOrder loads one order scoped to the owning profile.
func (l *Ledger) GetOrder(ctx context.Context, profileID, orderID int64) (*Order, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, profile_id, plan_id, title, currency, amount, status, payment_tx_id,
			created_at, paid_at
		FROM orders WHERE id = ? AND profile_id = ?`, orderID, profileID)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// ListOrders returns the profile's orders, newest first.
func (l *Ledger) ListOrders(ctx context.Context, profileID int64, limit int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, profile_id, plan_id, title, currency, amount, status, payment_tx_id,
			created_at, paid_at
		FROM orders WHERE profile_id = ? ORDER BY id DESC LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// PayOrderFromWallet settles a pending order from the wallet balance.
// Paying an already paid order is a no-op that returns the original
// payment, so webhook retries cannot double-charge.
func (l *Ledger) PayOrderFromWallet(ctx context.Context, profileID, orderID int64) (*Order, *Transaction, error) {
	order, err := l.GetOrder(ctx, profileID, orderID)
	if err != nil {
		return nil, nil, err
	}

	paymentKey := fmt.Sprintf("order-%d-payment", order.ID)
	if order.Status == OrderPaid {
		tx, err := findTransaction(ctx, l.db, profileID, paymentKey)
		if err != nil {
			return nil, nil, err
		}
		return order, tx, nil
	}

	tx, err := l.apply(ctx, profileID, order.Currency, DirectionDebit, order.Amount,
		fmt.Sprintf("Оплата заказа #%d", order.ID), paymentKey, &order.ID)
	if err != nil {
		return nil, nil, err
	}

	_, err = l.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, payment_tx_id = ?, paid_at = ? WHERE id = ?`,
		OrderPaid, tx.ID, time.Now().UTC(), order.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("mark order paid: %w", err)
	}

	paid, err := l.GetOrder(ctx, profileID, orderID)
	if err != nil {
		return nil, nil, err
	}
	return paid, tx, nil
}

// CancelOrder moves a pending order to cancelled. Paid orders stay paid.
func (l *Ledger) CancelOrder(ctx context.Context, profileID, orderID int64) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND profile_id = ? AND status = ?`,
		OrderCancelled, orderID, profileID, OrderPendingPayment)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}
	return nil
}

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var (
		o      Order
		planID sql.NullInt64
		txID   sql.NullInt64
		paidAt sql.NullTime
	)
	err := row.Scan(&o.ID, &o.ProfileID, &planID, &o.Title, &o.Currency, &o.Amount,
		&o.Status, &txID, &o.CreatedAt, &paidAt)
	if err != nil {
		return nil, err
	}
	if planID.Valid {
		o.PlanID = &planID.Int64
	}
	if txID.Valid {
		o.PaymentTxID = &txID.Int64
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	return &o, nil
}
