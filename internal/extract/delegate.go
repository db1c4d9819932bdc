package extract

import (
	"github.com/nhle/mailledger/internal/mail"
	"github.com/nhle/mailledger/internal/model"
)

// DelegatingStrategy serves an institution whose transactions show up in
// other senders' alerts. It hands each message to the strategy of the
// message's actual sender.
type DelegatingStrategy struct {
	// Address is the institution's own alert address. Mail from it is
	// never delegated.
	Address  string
	Registry *Registry
}

// Extract implements Strategy.
func (s *DelegatingStrategy) Extract(msg *mail.Message, account *model.Account) *model.Candidate {
	if msg == nil || account == nil || s.Registry == nil || msg.From == "" {
		return nil
	}

	from := normalizeAddress(msg.From)
	if from == normalizeAddress(s.Address) || from == normalizeAddress(account.Institution.AlertAddress) {
		return nil
	}

	target := s.Registry.Resolve(from, msg.Subject)
	if target == nil || target == Strategy(s) {
		return nil
	}
	if d, ok := target.(*DelegatingStrategy); ok && normalizeAddress(d.Address) == from {
		return nil
	}

	return target.Extract(msg, account)
}
