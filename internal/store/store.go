package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhle/mailledger/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for institutions, accounts and
// ledger entries.
type Store interface {
	// === Institutions ===

	CreateInstitution(ctx context.Context, inst *model.Institution) error
	GetInstitutionByAddress(ctx context.Context, address string) (*model.Institution, error)

	// === Accounts ===

	CreateAccount(ctx context.Context, acct *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	FindAccountsByType(ctx context.Context, t model.AccountType) ([]model.Account, error)
	FindAccountsByInstitutionAddress(ctx context.Context, address string) ([]model.Account, error)
	UpdateAccountBalanceAndSyncTime(ctx context.Context, accountID string, delta decimal.Decimal, now time.Time) error

	// === Ledger ===

	FindTransactionByFingerprint(ctx context.Context, id string) (*model.Transaction, error)
	SaveTransaction(ctx context.Context, t *model.Transaction) error
	// ApplyTransaction inserts t and applies its signed amount to the
	// owning account in one database transaction. It reports false when
	// an entry with the same id already exists; nothing changes then.
	ApplyTransaction(ctx context.Context, t *model.Transaction, syncedAt time.Time) (bool, error)
	ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error)

	Close() error
}
