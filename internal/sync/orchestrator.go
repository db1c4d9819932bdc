// Package sync drives mailbox searches and new-mail notifications
// through extraction and reconciliation.
package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailledger/internal/extract"
	"github.com/nhle/mailledger/internal/ledger"
	"github.com/nhle/mailledger/internal/logger"
	"github.com/nhle/mailledger/internal/mail"
	"github.com/nhle/mailledger/internal/model"
)

// Accounts is the account lookup the sync paths need.
type Accounts interface {
	FindAccountsByType(ctx context.Context, t model.AccountType) ([]model.Account, error)
	FindAccountsByInstitutionAddress(ctx context.Context, address string) ([]model.Account, error)
}

// Reconciler commits candidates.
type Reconciler interface {
	Reconcile(ctx context.Context, c *model.Candidate, account *model.Account) ledger.Outcome
}

// Result counts what a sync pass did.
type Result struct {
	Accounts   int `json:"accounts"`
	Failed     int `json:"failed"`
	Messages   int `json:"messages"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Dropped    int `json:"dropped"`
}

func (r *Result) add(o Result) {
	r.Accounts += o.Accounts
	r.Failed += o.Failed
	r.Messages += o.Messages
	r.Inserted += o.Inserted
	r.Duplicates += o.Duplicates
	r.Dropped += o.Dropped
}

func (r *Result) count(o ledger.Outcome) {
	switch o {
	case ledger.Inserted:
		r.Inserted++
	case ledger.Duplicate:
		r.Duplicates++
	default:
		r.Dropped++
	}
}

// OrchestratorConfig tunes full syncs.
type OrchestratorConfig struct {
	HistoryYears int
	// Concurrency bounds how many accounts sync at once.
	Concurrency int
}

// Orchestrator searches the mailbox per account and reconciles every
// matched message.
type Orchestrator struct {
	mailbox    mail.Mailbox
	accounts   Accounts
	registry   *extract.Registry
	reconciler Reconciler
	cfg        OrchestratorConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(
	mailbox mail.Mailbox,
	accounts Accounts,
	registry *extract.Registry,
	reconciler Reconciler,
	cfg OrchestratorConfig,
	log zerolog.Logger,
) *Orchestrator {
	if cfg.HistoryYears <= 0 {
		cfg.HistoryYears = DefaultHistoryYears
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Orchestrator{
		mailbox:    mailbox,
		accounts:   accounts,
		registry:   registry,
		reconciler: reconciler,
		cfg:        cfg,
		log:        logger.Component(log, "orchestrator"),
		now:        time.Now,
	}
}

// Sync processes every account of type t. Accounts are independent: a
// failing account is logged and counted and the others carry on. The
// returned error covers only the classification check and the account
// lookup.
func (o *Orchestrator) Sync(ctx context.Context, t model.AccountType, delta bool) (Result, error) {
	if !t.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
	}

	accounts, err := o.accounts.FindAccountsByType(ctx, t)
	if err != nil {
		return Result{}, fmt.Errorf("finding %s accounts: %w", t, err)
	}

	log := o.log.With().
		Str("run_id", uuid.NewString()).
		Str("type", string(t)).
		Bool("delta", delta).
		Logger()
	log.Info().Int("accounts", len(accounts)).Msg("sync started")

	var (
		mu    gosync.Mutex
		total Result
		g     errgroup.Group
	)
	g.SetLimit(o.cfg.Concurrency)

	for i := range accounts {
		account := accounts[i]
		g.Go(func() error {
			res, err := o.syncAccount(ctx, log, account, delta)
			res.Accounts = 1
			if err != nil {
				res.Failed = 1
				log.Error().Err(err).Str("account_id", account.ID).Msg("account sync failed")
			}
			mu.Lock()
			total.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.Info().
		Int("failed", total.Failed).
		Int("messages", total.Messages).
		Int("inserted", total.Inserted).
		Int("duplicates", total.Duplicates).
		Int("dropped", total.Dropped).
		Msg("sync finished")

	return total, nil
}

// SyncAccount searches the mailbox for account's window and reconciles
// the matches in ascending date order.
func (o *Orchestrator) SyncAccount(ctx context.Context, account model.Account, delta bool) (Result, error) {
	return o.syncAccount(ctx, o.log, account, delta)
}

func (o *Orchestrator) syncAccount(
	ctx context.Context, log zerolog.Logger, account model.Account, delta bool,
) (Result, error) {
	var res Result
	log = log.With().Str("account_id", account.ID).Logger()

	since := Window(account, delta, o.now(), o.cfg.HistoryYears)
	criteria, err := Criteria(account, since)
	if err != nil {
		return res, err
	}

	log.Debug().Str("criteria", mail.FormatCriteria(criteria)).Msg("searching mailbox")
	uids, err := o.mailbox.Search(ctx, criteria)
	if err != nil {
		return res, fmt.Errorf("searching mailbox: %w", err)
	}
	if len(uids) == 0 {
		log.Debug().Msg("no matching mail")
		return res, nil
	}

	var msgs []*mail.Message
	fetchErr := o.mailbox.FetchUIDs(ctx, uids, func(msg *mail.Message, err error) {
		if err != nil {
			res.Dropped++
			log.Warn().Err(err).Str("reason", "parse").Msg("dropping message")
			return
		}
		msgs = append(msgs, msg)
	})
	if fetchErr != nil {
		// Messages fetched before the failure are still reconciled; the
		// next pass covers the rest.
		log.Error().Err(fetchErr).Int("fetched", len(msgs)).Msg("fetch interrupted")
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Date.Before(msgs[j].Date) })

	for _, msg := range msgs {
		res.Messages++
		res.count(o.process(ctx, log, msg, &account))
	}

	if fetchErr != nil {
		return res, fmt.Errorf("fetching messages: %w", fetchErr)
	}
	return res, nil
}

// process resolves the strategy from the account's institution rather
// than the sender: loan repayments arrive from another bank.
func (o *Orchestrator) process(ctx context.Context, log zerolog.Logger, msg *mail.Message, account *model.Account) ledger.Outcome {
	log = log.With().Str("message_id", msg.MessageID).Str("from", msg.From).Logger()

	strategy, err := o.registry.Lookup(account.Institution.AlertAddress, msg.Subject)
	if err != nil {
		log.Debug().Err(err).Str("reason", "strategy").Msg("dropping message")
		return ledger.Failed
	}
	return extractAndReconcile(ctx, log, o.reconciler, strategy, msg, account)
}

func extractAndReconcile(
	ctx context.Context,
	log zerolog.Logger,
	r Reconciler,
	strategy extract.Strategy,
	msg *mail.Message,
	account *model.Account,
) ledger.Outcome {
	c, err := extract.Apply(strategy, msg, account)
	if err != nil {
		log.Error().Err(err).Str("reason", "extract").Msg("dropping message")
		return ledger.Failed
	}
	if c == nil {
		log.Debug().Str("reason", "no match").Msg("dropping message")
		return ledger.Failed
	}
	return r.Reconcile(ctx, c, account)
}
