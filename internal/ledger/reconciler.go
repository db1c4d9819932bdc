package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/mailledger/internal/events"
	"github.com/nhle/mailledger/internal/logger"
	"github.com/nhle/mailledger/internal/model"
	"github.com/nhle/mailledger/internal/store"
)

// Outcome is the result of reconciling one candidate.
type Outcome int

const (
	// Inserted means a new entry was committed and the balance adjusted.
	Inserted Outcome = iota
	// Duplicate means an entry with the same fingerprint already exists.
	Duplicate
	// Failed means the candidate was dropped; the reason was logged.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	default:
		return "failed"
	}
}

// Ledger is the storage the reconciler needs.
type Ledger interface {
	FindTransactionByFingerprint(ctx context.Context, id string) (*model.Transaction, error)
	ApplyTransaction(ctx context.Context, t *model.Transaction, syncedAt time.Time) (bool, error)
}

// Reconciler deduplicates candidates by fingerprint and commits new ones
// together with their balance change.
type Reconciler struct {
	ledger    Ledger
	publisher events.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewReconciler creates a reconciler. publisher may be nil.
func NewReconciler(ledger Ledger, publisher events.Publisher, log zerolog.Logger) *Reconciler {
	if publisher == nil {
		publisher = events.Nop{Log: log}
	}
	return &Reconciler{
		ledger:    ledger,
		publisher: publisher,
		log:       logger.Component(log, "reconciler"),
		now:       time.Now,
	}
}

// Reconcile records c against account at most once. Storage errors are
// logged and the candidate is dropped; a later sync over the same window
// derives the same fingerprint and retries it.
func (r *Reconciler) Reconcile(ctx context.Context, c *model.Candidate, account *model.Account) Outcome {
	if c == nil || account == nil {
		return Failed
	}

	signed := c.SignedAmount()
	id := Fingerprint(c.Date, account.ID, signed)
	log := r.log.With().Str("fingerprint", id).Str("account_id", account.ID).Logger()

	existing, err := r.ledger.FindTransactionByFingerprint(ctx, id)
	switch {
	case err == nil && existing != nil:
		log.Debug().Msg("transaction already recorded")
		return Duplicate
	case err != nil && !errors.Is(err, store.ErrNotFound):
		log.Error().Err(err).Msg("looking up transaction failed, dropping candidate")
		return Failed
	}

	now := r.now().UTC()
	txn := &model.Transaction{
		ID:          id,
		AccountID:   account.ID,
		Date:        c.Date.UTC(),
		Amount:      c.Amount,
		Direction:   c.Direction,
		Category:    orDefault(c.Category, model.CategoryOther),
		Labels:      c.Labels,
		PaymentMode: c.PaymentMode,
		Currency:    orDefault(c.Currency, model.DefaultCurrency),
		Status:      model.StatusCompleted,
		Note:        c.Note,
		CreatedAt:   now,
	}

	applied, err := r.ledger.ApplyTransaction(ctx, txn, now)
	if err != nil {
		log.Error().Err(err).Msg("persisting transaction failed, dropping candidate")
		return Failed
	}
	if !applied {
		log.Debug().Msg("transaction recorded concurrently")
		return Duplicate
	}

	log.Info().
		Str("amount", signed.StringFixed(2)).
		Str("direction", string(c.Direction)).
		Msg("transaction reconciled")

	if err := r.publisher.Publish(ctx, events.KeyTransactionReconciled, events.TransactionReconciled{
		EventID:       uuid.New(),
		TransactionID: id,
		AccountID:     account.ID,
		Amount:        c.Amount,
		Direction:     string(c.Direction),
		Date:          txn.Date,
		Timestamp:     now,
	}); err != nil {
		log.Warn().Err(err).Msg("publishing reconciled event failed")
	}

	return Inserted
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
