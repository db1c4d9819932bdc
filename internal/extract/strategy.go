// Package extract turns alert mail into candidate transactions. Each
// institution is served by a Strategy registered under its sender
// address.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nhle/mailledger/internal/mail"
	"github.com/nhle/mailledger/internal/model"
)

var (
	// ErrStrategyNotFound means no strategy is registered for the sender.
	ErrStrategyNotFound = errors.New("no strategy for sender")
	// ErrUnexpectedSubject means the sender is known but its strategies
	// require a different subject.
	ErrUnexpectedSubject = errors.New("unexpected subject for sender")
)

// Strategy extracts at most one candidate transaction from a message for
// the given account. A nil result means the message does not apply;
// that is not an error.
type Strategy interface {
	Extract(msg *mail.Message, account *model.Account) *model.Candidate
}

// FieldSource is implemented by strategies whose field extractors can
// be reused by other strategies reading the same sender's mail.
type FieldSource interface {
	// FieldText normalizes msg the way the strategy's extractors expect.
	FieldText(msg *mail.Message) string
	Amount(text string) string
	DateText(text string) string
}

// Apply runs s and converts a panic into an error so a malformed
// message cannot take down the caller.
func Apply(s Strategy, msg *mail.Message, account *model.Account) (c *model.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Extract(msg, account), nil
}

// note is the raw extracted field set stored alongside a ledger entry.
type note struct {
	TransactionDate    string `json:"transactionDate"`
	TransactionAccount string `json:"transactionAccount"`
	TransactionInfo    string `json:"transactionInfo"`
	TransactionAmount  string `json:"transactionAmount"`
}

func (n note) String() string {
	b, err := json.Marshal(n)
	if err != nil {
		return ""
	}
	return string(b)
}
