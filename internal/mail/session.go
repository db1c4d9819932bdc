package mail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// SessionHandler receives unilateral mailbox updates from a Session.
type SessionHandler struct {
	// Exists is called with the new message total whenever the server
	// reports an EXISTS update.
	Exists func(total uint32)
	// Expunge is called once per expunged message.
	Expunge func()
}

// Session is a long-lived connection dedicated to watching one mailbox.
type Session interface {
	// Select opens the mailbox read-only and returns its message total.
	Select(mailbox string) (uint32, error)
	Subscribe(mailbox string) error
	// Idle keeps an IDLE command running in the background, restarting
	// it every restart interval, until the session ends.
	Idle(restart time.Duration) error
	// Done is closed when the session has ended for any reason.
	Done() <-chan struct{}
	// Err reports why the session ended, if it ended on its own.
	Err() error
	Close() error
}

// Dialer opens watch sessions.
type Dialer interface {
	Dial(ctx context.Context, h SessionHandler) (Session, error)
}

var errSessionClosed = errors.New("session closed by server")

// Dial opens a watch session delivering unilateral updates to h.
func (c *IMAPClient) Dial(ctx context.Context, h SessionHandler) (Session, error) {
	options := &imapclient.Options{
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{
			Mailbox: func(data *imapclient.UnilateralDataMailbox) {
				if data.NumMessages != nil && h.Exists != nil {
					h.Exists(*data.NumMessages)
				}
			},
			Expunge: func(_ uint32) {
				if h.Expunge != nil {
					h.Expunge()
				}
			},
		},
	}

	cn, err := c.dial(ctx, options)
	if err != nil {
		return nil, err
	}

	s := &idleSession{
		cn:   cn,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.watch(ctx)
	return s, nil
}

type idleSession struct {
	cn *conn

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// watch ends the session when the server goes away or ctx is done. A
// session never outlives ctx, so a server stalling on SELECT cannot hold
// up shutdown.
func (s *idleSession) watch(ctx context.Context) {
	select {
	case <-s.cn.client.Closed():
		s.fail(errSessionClosed)
	case <-ctx.Done():
		_ = s.Close()
	case <-s.stop:
	}
	close(s.done)
}

func (s *idleSession) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// step runs one setup command under the connection timeout.
func (s *idleSession) step(fn func() error) error {
	_ = s.cn.raw.SetDeadline(time.Now().Add(s.cn.timeout))
	err := fn()
	_ = s.cn.raw.SetDeadline(time.Time{})
	return err
}

func (s *idleSession) Select(mailbox string) (uint32, error) {
	var total uint32
	err := s.step(func() error {
		data, err := s.cn.client.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
		if err != nil {
			return &TransportError{Op: "select " + mailbox, Err: err}
		}
		total = data.NumMessages
		return nil
	})
	return total, err
}

func (s *idleSession) Subscribe(mailbox string) error {
	return s.step(func() error {
		if err := s.cn.client.Subscribe(mailbox).Wait(); err != nil {
			return &TransportError{Op: "subscribe " + mailbox, Err: err}
		}
		return nil
	})
}

func (s *idleSession) Idle(restart time.Duration) error {
	var cmd *imapclient.IdleCommand
	err := s.step(func() error {
		var err error
		if cmd, err = s.cn.client.Idle(); err != nil {
			return &TransportError{Op: "idle", Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}
	go s.idleLoop(cmd, restart)
	return nil
}

// idleLoop restarts IDLE before servers drop it for inactivity.
func (s *idleSession) idleLoop(cmd *imapclient.IdleCommand, restart time.Duration) {
	for {
		timer := time.NewTimer(restart)
		select {
		case <-s.stop:
			timer.Stop()
			_ = cmd.Close()
			return
		case <-s.cn.client.Closed():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := cmd.Close(); err != nil {
			s.fail(&TransportError{Op: "idle done", Err: err})
			_ = s.cn.client.Close()
			return
		}

		var err error
		cmd, err = s.cn.client.Idle()
		if err != nil {
			s.fail(&TransportError{Op: "idle", Err: err})
			_ = s.cn.client.Close()
			return
		}
	}
}

func (s *idleSession) Done() <-chan struct{} { return s.done }

func (s *idleSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *idleSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		_ = s.cn.client.Close()
	})
	return nil
}
