package sync

import (
	"errors"
	"testing"
	"time"

	"github.com/nhle/mailledger/internal/mail"
	"github.com/nhle/mailledger/internal/model"
)

func TestWindow(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	start := time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)
	synced := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	horizon := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		account model.Account
		delta   bool
		want    time.Time
	}{
		{"bank full", model.Account{Type: model.AccountTypeBank, StartDate: start}, false, horizon},
		{"bank delta", model.Account{Type: model.AccountTypeBank, LastSyncedOn: synced}, true, synced},
		{"bank delta never synced", model.Account{Type: model.AccountTypeBank}, true, horizon},
		{"loan full", model.Account{Type: model.AccountTypeLoan, StartDate: start, LastSyncedOn: synced}, false, start},
		{"loan no start date", model.Account{Type: model.AccountTypeLoan}, false, horizon},
		{"card delta", model.Account{Type: model.AccountTypeCreditCard, StartDate: start, LastSyncedOn: synced}, true, synced},
		{"card delta never synced", model.Account{Type: model.AccountTypeCreditCard, StartDate: start}, true, start},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Window(tt.account, tt.delta, now, 3); !got.Equal(tt.want) {
				t.Errorf("Window = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCriteria(t *testing.T) {
	since := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		account model.Account
		want    string
	}{
		{
			name: "bank filters by sender",
			account: model.Account{
				Type:        model.AccountTypeBank,
				Institution: model.Institution{AlertAddress: "alerts@bank.example"},
			},
			want: `[SINCE 02-Jan-2023, HEADER FROM "alerts@bank.example"]`,
		},
		{
			name:    "loan ors every token",
			account: model.Account{Type: model.AccountTypeLoan, SearchText: "HOME LOAN, EMI ,LN123"},
			want:    `[SINCE 02-Jan-2023, OR (BODY "LN123") (OR (BODY "EMI") (BODY "HOME LOAN"))]`,
		},
		{
			name:    "credit card uses whole text",
			account: model.Account{Type: model.AccountTypeCreditCard, SearchText: "Card XX9876"},
			want:    `[SINCE 02-Jan-2023, BODY "Card XX9876"]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Criteria(tt.account, since)
			if err != nil {
				t.Fatalf("Criteria: %v", err)
			}
			if s := mail.FormatCriteria(got); s != tt.want {
				t.Errorf("Criteria = %s, want %s", s, tt.want)
			}
		})
	}
}

func TestCriteria_Invalid(t *testing.T) {
	since := time.Now()
	for _, a := range []model.Account{
		{ID: "bank", Type: model.AccountTypeBank},
		{ID: "loan", Type: model.AccountTypeLoan, SearchText: " , "},
		{ID: "card", Type: model.AccountTypeCreditCard},
	} {
		if _, err := Criteria(a, since); err == nil {
			t.Errorf("Criteria(%s) succeeded, want error", a.ID)
		}
	}

	_, err := Criteria(model.Account{ID: "x", Type: "SAVINGS"}, since)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("err = %v, want ErrUnsupportedType", err)
	}
}
