package sync

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/mailledger/internal/mail"
	"github.com/nhle/mailledger/internal/model"
)

// ErrUnsupportedType is returned for an account classification the mail
// sync does not handle.
var ErrUnsupportedType = errors.New("unsupported account type")

// DefaultHistoryYears is how far back a full sync of a bank account
// looks when no other horizon is configured.
const DefaultHistoryYears = 3

// Horizon is the start of the calendar year historyYears before now.
func Horizon(now time.Time, historyYears int) time.Time {
	return time.Date(now.Year()-historyYears, time.January, 1, 0, 0, 0, 0, now.Location())
}

// Window returns the earliest message date a sync of account covers.
// A delta sync resumes from the last reconciled transaction; an account
// that was never synced gets the full window.
func Window(account model.Account, delta bool, now time.Time, historyYears int) time.Time {
	if delta && !account.LastSyncedOn.IsZero() {
		return account.LastSyncedOn
	}
	switch account.Type {
	case model.AccountTypeLoan, model.AccountTypeCreditCard:
		if !account.StartDate.IsZero() {
			return account.StartDate
		}
	}
	return Horizon(now, historyYears)
}

// Criteria builds the mailbox search for account since the given date.
func Criteria(account model.Account, since time.Time) ([]mail.Criterion, error) {
	switch account.Type {
	case model.AccountTypeBank:
		address := strings.TrimSpace(account.Institution.AlertAddress)
		if address == "" {
			return nil, fmt.Errorf("account %s: institution has no alert address", account.ID)
		}
		return []mail.Criterion{mail.Since(since), mail.From(address)}, nil

	case model.AccountTypeLoan:
		// Loan alerts have no fixed phrase; any configured token may appear.
		body, ok := mail.AnyBody(strings.Split(account.SearchText, ","))
		if !ok {
			return nil, fmt.Errorf("account %s: search text is empty", account.ID)
		}
		return []mail.Criterion{mail.Since(since), body}, nil

	case model.AccountTypeCreditCard:
		text := strings.TrimSpace(account.SearchText)
		if text == "" {
			return nil, fmt.Errorf("account %s: search text is empty", account.ID)
		}
		return []mail.Criterion{mail.Since(since), mail.Body(text)}, nil
	}

	return nil, fmt.Errorf("account %s: %w: %s", account.ID, ErrUnsupportedType, account.Type)
}
