package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailledger/internal/events"
	"github.com/nhle/mailledger/internal/extract"
	"github.com/nhle/mailledger/internal/ledger"
	"github.com/nhle/mailledger/internal/logger"
	"github.com/nhle/mailledger/internal/mail"
)

// DefaultParsedBuffer is the capacity of the parsed-mail stage.
const DefaultParsedBuffer = 32

// Listener reconciles mail announced by the watcher. Fetching and
// reconciling run as two stages joined by a buffered channel so a slow
// database does not hold up the next fetch.
type Listener struct {
	mailbox    mail.Mailbox
	accounts   Accounts
	registry   *extract.Registry
	reconciler Reconciler
	publisher  events.Publisher
	buffer     int
	log        zerolog.Logger
	now        func() time.Time
}

// NewListener creates a listener. publisher may be nil.
func NewListener(
	mailbox mail.Mailbox,
	accounts Accounts,
	registry *extract.Registry,
	reconciler Reconciler,
	publisher events.Publisher,
	log zerolog.Logger,
) *Listener {
	if publisher == nil {
		publisher = events.Nop{Log: log}
	}
	return &Listener{
		mailbox:    mailbox,
		accounts:   accounts,
		registry:   registry,
		reconciler: reconciler,
		publisher:  publisher,
		buffer:     DefaultParsedBuffer,
		log:        logger.Component(log, "listener"),
		now:        time.Now,
	}
}

// Run consumes events until ctx is done or events is closed, then
// drains the parsed-mail stage.
func (l *Listener) Run(ctx context.Context, evs <-chan mail.NewMailEvent) error {
	parsed := make(chan *mail.Message, l.buffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(parsed)
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-evs:
				if !ok {
					return nil
				}
				l.fetch(gctx, ev, parsed)
			}
		}
	})
	g.Go(func() error {
		for msg := range parsed {
			l.Handle(gctx, msg)
		}
		return nil
	})

	return g.Wait()
}

func (l *Listener) fetch(ctx context.Context, ev mail.NewMailEvent, out chan<- *mail.Message) {
	from, to, ok := ev.SeqRange()
	if !ok {
		return
	}
	log := l.log.With().Uint32("from", from).Uint32("to", to).Logger()
	log.Info().Uint32("new", ev.NewMessageCount).Msg("new mail")

	if err := l.publisher.Publish(ctx, events.KeyMailReceived, events.MailReceived{
		EventID:           uuid.New(),
		NewMessageCount:   ev.NewMessageCount,
		TotalMessageCount: ev.TotalMessageCount,
		Timestamp:         l.now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Msg("publishing mail event failed")
	}

	err := l.mailbox.FetchRange(ctx, from, to, func(msg *mail.Message, err error) {
		if err != nil {
			log.Warn().Err(err).Str("reason", "parse").Msg("dropping message")
			return
		}
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("fetching new mail failed")
	}
}

// Handle reconciles msg against every account of the sending
// institution and reports how many entries were inserted.
func (l *Listener) Handle(ctx context.Context, msg *mail.Message) int {
	log := l.log.With().Str("message_id", msg.MessageID).Str("from", msg.From).Logger()

	strategy, err := l.registry.Lookup(msg.From, msg.Subject)
	if err != nil {
		log.Debug().Err(err).Str("reason", "strategy").Msg("dropping message")
		return 0
	}

	accounts, err := l.accounts.FindAccountsByInstitutionAddress(ctx, msg.From)
	if err != nil {
		log.Error().Err(err).Msg("finding accounts failed")
		return 0
	}
	if len(accounts) == 0 {
		log.Debug().Str("reason", "no account").Msg("dropping message")
		return 0
	}

	inserted := 0
	for i := range accounts {
		if extractAndReconcile(ctx, log, l.reconciler, strategy, msg, &accounts[i]) == ledger.Inserted {
			inserted++
		}
	}
	return inserted
}
