package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether money entered or left an account.
type Direction string

const (
	DirectionIncome  Direction = "Income"
	DirectionExpense Direction = "Expense"
)

// Sign returns +1 for income and -1 for expense.
func (d Direction) Sign() decimal.Decimal {
	if d == DirectionExpense {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// PaymentMode is the channel a transaction went through.
type PaymentMode string

const (
	PaymentModeCash           PaymentMode = "Cash"
	PaymentModeBankTransfer   PaymentMode = "Bank Transfer"
	PaymentModeMobileTransfer PaymentMode = "Mobile Transfer"
	PaymentModeCheque         PaymentMode = "Cheque"
	PaymentModeATM            PaymentMode = "ATM"
)

// Category constants for ledger entries.
const (
	CategoryOther = "Other"
	CategoryEMI   = "EMI"
)

// StatusCompleted marks a reconciled ledger entry.
const StatusCompleted = "Completed"

// DefaultCurrency is used when an alert does not state one.
const DefaultCurrency = "INR"

// Candidate is a transaction extracted from a single message that has
// not been reconciled yet. Amount is always positive; Direction carries
// the sign.
type Candidate struct {
	Amount      decimal.Decimal
	Date        time.Time
	Direction   Direction
	Description string
	Labels      []string
	PaymentMode PaymentMode
	Category    string
	Currency    string

	// Note is a JSON payload with the raw extracted fields.
	Note string
}

// SignedAmount returns the amount with the direction applied.
func (c Candidate) SignedAmount() decimal.Decimal {
	return c.Amount.Mul(c.Direction.Sign())
}

// Transaction is a persisted ledger entry.
type Transaction struct {
	// ID is the deterministic fingerprint of (date, account, amount).
	ID string `json:"id"`

	AccountID   string          `json:"account_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Category    string          `json:"category"`
	Labels      []string        `json:"labels"`
	PaymentMode PaymentMode     `json:"payment_mode"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	Note        string          `json:"note"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SignedAmount returns the balance delta this entry applies.
func (t Transaction) SignedAmount() decimal.Decimal {
	return t.Amount.Mul(t.Direction.Sign())
}
