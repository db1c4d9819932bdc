package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account and decides how it is synced.
type AccountType string

const (
	AccountTypeBank       AccountType = "BANK"
	AccountTypeLoan       AccountType = "LOAN"
	AccountTypeCreditCard AccountType = "CREDIT_CARD"
)

// SyncableAccountTypes lists the classifications the mail sync handles.
var SyncableAccountTypes = []AccountType{
	AccountTypeBank,
	AccountTypeLoan,
	AccountTypeCreditCard,
}

// Valid reports whether t is a known account classification.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeBank, AccountTypeLoan, AccountTypeCreditCard:
		return true
	}
	return false
}

// Institution is a bank or lender that sends transaction alert mail.
type Institution struct {
	// ID is the unique identifier for this institution.
	ID string `json:"id"`

	// Name is the display name (e.g., "Punjab National Bank").
	Name string `json:"name"`

	// AlertAddress is the sender address alert mail originates from.
	AlertAddress string `json:"alert_address"`
}

// Account is a ledger account whose balance is kept in step with the
// alert mail of its institution.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Number is the full account number. Alerts usually only carry a
	// masked tail of it.
	Number string `json:"number"`

	Type    AccountType     `json:"type"`
	Balance decimal.Decimal `json:"balance"`

	InstitutionID string      `json:"institution_id"`
	Institution   Institution `json:"institution"`

	// SearchText holds comma separated free-text tokens used to build
	// mailbox body filters for loan and credit card accounts.
	SearchText string `json:"search_text"`

	// StartDate is the earliest date a full sync looks back to.
	StartDate time.Time `json:"start_date"`

	// LastSyncedOn is set whenever a transaction is reconciled into the
	// account. The zero value means the account has never been synced.
	LastSyncedOn time.Time `json:"last_synced_on"`
}
