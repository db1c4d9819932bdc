package mail

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the watcher's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// WatcherConfig holds the watcher timings.
type WatcherConfig struct {
	Mailbox        string
	RetryDelay     time.Duration
	HealthInterval time.Duration
	IdleRestart    time.Duration
	EventBuffer    int
}

func (c *WatcherConfig) withDefaults() {
	if c.Mailbox == "" {
		c.Mailbox = "INBOX"
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 60 * time.Second
	}
	if c.IdleRestart <= 0 {
		c.IdleRestart = 25 * time.Minute
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
}

// Watcher keeps a live subscription to one mailbox and emits a
// NewMailEvent whenever the message total grows. Connection loss is
// never fatal: the watcher retries after RetryDelay, and a periodic
// health check reconnects a watcher found disconnected.
type Watcher struct {
	dialer Dialer
	cfg    WatcherConfig
	log    zerolog.Logger

	events    chan NewMailEvent
	connectCh chan struct{}

	mu         sync.Mutex
	state      State
	session    Session
	generation uint64
	opened     bool
	total      uint32
	failures   int
}

// NewWatcher creates a watcher. Call Run to start it.
func NewWatcher(dialer Dialer, cfg WatcherConfig, log zerolog.Logger) *Watcher {
	cfg.withDefaults()
	return &Watcher{
		dialer:    dialer,
		cfg:       cfg,
		log:       log.With().Str("component", "watcher").Str("mailbox", cfg.Mailbox).Logger(),
		events:    make(chan NewMailEvent, cfg.EventBuffer),
		connectCh: make(chan struct{}, 1),
	}
}

// Events returns the channel new-mail events are delivered on. It is
// never closed; consumers should stop on their own context.
func (w *Watcher) Events() <-chan NewMailEvent {
	return w.events
}

// State returns the current connection state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Total returns the last known message total of the watched mailbox.
func (w *Watcher) Total() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// Run connects and keeps the subscription alive until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	health := time.NewTicker(w.cfg.HealthInterval)
	defer health.Stop()

	w.requestConnect()

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return nil
		case <-w.connectCh:
			w.connect(ctx)
		case <-health.C:
			w.checkHealth()
		}
	}
}

func (w *Watcher) requestConnect() {
	select {
	case w.connectCh <- struct{}{}:
	default:
	}
}

func (w *Watcher) checkHealth() {
	switch st := w.State(); st {
	case StateDisconnected, StateReconnecting:
		w.log.Info().Str("state", st.String()).Msg("health check found watcher disconnected, reconnecting")
		w.requestConnect()
	}
}

// connect is a no-op while a connection attempt is in flight or a
// subscription is live.
func (w *Watcher) connect(ctx context.Context) {
	w.mu.Lock()
	switch w.state {
	case StateConnecting, StateSubscribed, StateClosed:
		w.mu.Unlock()
		return
	}
	w.state = StateConnecting
	w.generation++
	gen := w.generation
	w.opened = false
	w.mu.Unlock()

	sess, err := w.establish(ctx, gen)

	w.mu.Lock()
	if w.state == StateClosed || ctx.Err() != nil {
		w.mu.Unlock()
		if sess != nil {
			_ = sess.Close()
		}
		return
	}
	if err != nil {
		w.state = StateReconnecting
		w.failures++
		failures := w.failures
		w.mu.Unlock()

		w.log.Warn().Err(err).
			Int("attempt", failures).
			Dur("retry_in", w.cfg.RetryDelay).
			Msg("mailbox connection failed")
		w.scheduleRetry()
		return
	}
	w.session = sess
	w.state = StateSubscribed
	w.failures = 0
	total := w.total
	w.mu.Unlock()

	w.log.Info().Uint32("total", total).Msg("subscribed to mailbox")
	go w.monitor(ctx, gen, sess)
}

// establish runs connect, open and subscribe, then starts IDLE. Any
// step failing closes the partial session.
func (w *Watcher) establish(ctx context.Context, gen uint64) (Session, error) {
	sess, err := w.dialer.Dial(ctx, SessionHandler{
		Exists:  func(total uint32) { w.onExists(gen, total) },
		Expunge: func() { w.onExpunge(gen) },
	})
	if err != nil {
		return nil, err
	}

	total, err := sess.Select(w.cfg.Mailbox)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}

	// A fresh selection resets the baseline without reporting mail.
	w.mu.Lock()
	if gen == w.generation {
		w.total = total
		w.opened = true
	}
	w.mu.Unlock()

	if err := sess.Subscribe(w.cfg.Mailbox); err != nil {
		_ = sess.Close()
		return nil, err
	}
	if err := sess.Idle(w.cfg.IdleRestart); err != nil {
		_ = sess.Close()
		return nil, err
	}

	return sess, nil
}

func (w *Watcher) monitor(ctx context.Context, gen uint64, sess Session) {
	select {
	case <-sess.Done():
	case <-ctx.Done():
		return
	}

	w.mu.Lock()
	if gen != w.generation || w.state == StateClosed {
		w.mu.Unlock()
		return
	}
	w.state = StateReconnecting
	w.session = nil
	w.opened = false
	w.mu.Unlock()

	w.log.Warn().Err(sess.Err()).Dur("retry_in", w.cfg.RetryDelay).Msg("mailbox session ended")
	w.scheduleRetry()
}

func (w *Watcher) scheduleRetry() {
	time.AfterFunc(w.cfg.RetryDelay, w.requestConnect)
}

func (w *Watcher) onExists(gen uint64, total uint32) {
	w.mu.Lock()
	if gen != w.generation || !w.opened {
		w.mu.Unlock()
		return
	}
	var ev NewMailEvent
	emit := total > w.total
	if emit {
		ev = NewMailEvent{NewMessageCount: total - w.total, TotalMessageCount: total}
	}
	w.total = total
	w.mu.Unlock()

	if !emit {
		return
	}
	select {
	case w.events <- ev:
		w.log.Debug().
			Uint32("new", ev.NewMessageCount).
			Uint32("total", ev.TotalMessageCount).
			Msg("new mail")
	default:
		w.log.Warn().
			Uint32("new", ev.NewMessageCount).
			Msg("event buffer full, dropping new mail event")
	}
}

func (w *Watcher) onExpunge(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation || !w.opened {
		return
	}
	if w.total > 0 {
		w.total--
	}
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.state = StateClosed
	sess := w.session
	w.session = nil
	w.mu.Unlock()

	if sess != nil {
		_ = sess.Close()
	}
	w.log.Info().Msg("watcher stopped")
}
