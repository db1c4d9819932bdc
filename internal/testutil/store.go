package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhle/mailledger/internal/model"
	"github.com/nhle/mailledger/internal/store"
)

// NewTestStore creates an in-memory SQLite store with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedAccount creates an institution for address (reusing an existing
// one) and an account of type typ with the given number and balance.
func SeedAccount(
	t *testing.T, s store.Store, address string, typ model.AccountType, number, balance string,
) *model.Account {
	t.Helper()
	ctx := context.Background()

	inst, err := s.GetInstitutionByAddress(ctx, address)
	if err != nil {
		inst = &model.Institution{Name: address, AlertAddress: address}
		if err := s.CreateInstitution(ctx, inst); err != nil {
			t.Fatalf("creating institution: %v", err)
		}
	}

	acct := &model.Account{
		Name:          string(typ) + " " + number,
		Number:        number,
		Type:          typ,
		Balance:       decimal.RequireFromString(balance),
		InstitutionID: inst.ID,
		Institution:   *inst,
		StartDate:     time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.CreateAccount(ctx, acct); err != nil {
		t.Fatalf("creating account: %v", err)
	}
	return acct
}
