// Package events publishes pipeline events for other services to
// consume.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Routing keys.
const (
	KeyMailReceived          = "mail.received"
	KeyTransactionReconciled = "transaction.reconciled"
)

// Publisher sends events. Implementations must be safe for concurrent
// use.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// MailReceived is published when the watcher reports new mail.
type MailReceived struct {
	EventID           uuid.UUID `json:"event_id"`
	NewMessageCount   uint32    `json:"new_message_count"`
	TotalMessageCount uint32    `json:"total_message_count"`
	Timestamp         time.Time `json:"timestamp"`
}

// TransactionReconciled is published after a ledger entry is committed.
type TransactionReconciled struct {
	EventID       uuid.UUID       `json:"event_id"`
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     string          `json:"direction"`
	Date          time.Time       `json:"date"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Nop discards events. It is used when no broker is configured.
type Nop struct {
	Log zerolog.Logger
}

// Publish implements Publisher.
func (p Nop) Publish(_ context.Context, routingKey string, _ any) error {
	p.Log.Debug().Str("routing_key", routingKey).Msg("publish skipped, no broker configured")
	return nil
}

// Close implements Publisher.
func (Nop) Close() {}
