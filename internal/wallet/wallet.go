package wallet

import (
	"errors"
	"math"
	"time"
)

// Supported wallet currencies. Stars are whole units, calocoin carries two
// decimals.
const (
	CurrencyStars    = "stars"
	CurrencyCalocoin = "calocoin"
)

// Transaction directions.
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// Order statuses.
const (
	OrderPendingPayment = "pending_payment"
	OrderPaid           = "paid"
	OrderCancelled      = "cancelled"
)

var (
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUnknownCurrency is returned for currencies outside the known set.
	ErrUnknownCurrency = errors.New("unknown wallet currency")

	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOrderNotFound is returned when an order id has no row for the profile.
	ErrOrderNotFound = errors.New("order not found")
)

// Transaction is one immutable ledger entry. Balances are recorded before
// and after so the ledger can be audited without replaying it.
type Transaction struct {
	ID             int64     `json:"id"`
	ProfileID      int64     `json:"-"`
	Currency       string    `json:"currency"`
	Direction      string    `json:"direction"`
	Amount         float64   `json:"amount"`
	BalanceBefore  float64   `json:"balance_before"`
	BalanceAfter   float64   `json:"balance_after"`
	Description    string    `json:"description"`
	IdempotencyKey string    `json:"-"`
	OrderID        *int64    `json:"order_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Order is a purchase that can be settled from the wallet.
type Order struct {
	ID          int64      `json:"id"`
	ProfileID   int64      `json:"-"`
	PlanID      *int64     `json:"plan_id,omitempty"`
	Title       string     `json:"title"`
	Currency    string     `json:"currency"`
	Amount      float64    `json:"amount"`
	Status      string     `json:"status"`
	PaymentTxID *int64     `json:"payment_tx_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

// Balances is the current state of both wallet currencies.
type Balances struct {
	Stars    int64   `json:"stars"`
	Calocoin float64 `json:"calocoin"`
}

// normalizeAmount validates and quantizes an amount for its currency:
// stars to whole units, calocoin to two decimals.
func normalizeAmount(currency string, amount float64) (float64, error) {
	switch currency {
	case CurrencyStars:
		if amount <= 0 {
			return 0, ErrInvalidAmount
		}
		return math.Floor(amount + 0.5), nil
	case CurrencyCalocoin:
		if amount <= 0 {
			return 0, ErrInvalidAmount
		}
		return math.Floor(amount*100+0.5) / 100, nil
	default:
		return 0, ErrUnknownCurrency
	}
}
