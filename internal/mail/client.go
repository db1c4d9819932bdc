package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// DefaultFetchTimeout bounds the time spent retrieving a single message.
const DefaultFetchTimeout = 30 * time.Second

// FetchFunc receives one fetched message. err is a ParseError when the
// message could not be parsed; msg is nil in that case.
type FetchFunc func(msg *Message, err error)

// Mailbox is the search and fetch surface used by the sync paths.
type Mailbox interface {
	Search(ctx context.Context, criteria []Criterion) ([]imap.UID, error)
	FetchUIDs(ctx context.Context, uids []imap.UID, fn FetchFunc) error
	FetchRange(ctx context.Context, from, to uint32, fn FetchFunc) error
}

// IMAPClient wraps go-imap v2 for connecting to and querying IMAP servers.
// Every operation opens its own connection so it never competes with the
// Watcher's IDLE session.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	mailbox  string

	fetchTimeout time.Duration
	dialer       *net.Dialer
}

// Option configures an IMAPClient.
type Option func(*IMAPClient)

// WithMailbox sets the mailbox to select. Defaults to INBOX.
func WithMailbox(name string) Option {
	return func(c *IMAPClient) {
		if name != "" {
			c.mailbox = name
		}
	}
}

// WithFetchTimeout sets the per-message fetch timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *IMAPClient) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, useTLS bool, opts ...Option,
) *IMAPClient {
	c := &IMAPClient{
		host:         host,
		port:         port,
		username:     username,
		password:     password,
		tls:          useTLS,
		mailbox:      "INBOX",
		fetchTimeout: DefaultFetchTimeout,
		dialer:       &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mailbox returns the name of the selected mailbox.
func (c *IMAPClient) Mailbox() string { return c.mailbox }

// Addr returns the server address.
func (c *IMAPClient) Addr() string { return net.JoinHostPort(c.host, c.port) }

// conn is an authenticated connection along with the raw socket, which
// is kept so per-message deadlines can be applied.
type conn struct {
	client  *imapclient.Client
	raw     net.Conn
	timeout time.Duration
}

func (cn *conn) logout() {
	_ = cn.raw.SetDeadline(time.Now().Add(5 * time.Second))
	_ = cn.client.Logout().Wait()
	_ = cn.client.Close()
}

// bounded runs fn with raw's deadline set timeout ahead and raw closed
// as soon as ctx is done. The deadline is cleared afterwards. When ctx
// ended first the socket is gone and ctx's error is returned.
func bounded(ctx context.Context, raw net.Conn, timeout time.Duration, fn func() error) error {
	_ = raw.SetDeadline(time.Now().Add(timeout))
	stop := context.AfterFunc(ctx, func() { _ = raw.Close() })

	err := fn()
	if !stop() {
		return ctx.Err()
	}
	_ = raw.SetDeadline(time.Time{})
	return err
}

// dial establishes a connection to the IMAP server and authenticates.
// options may carry a unilateral data handler; nil is allowed. The
// greeting, STARTTLS and LOGIN together must finish within the fetch
// timeout and before ctx is done.
func (c *IMAPClient) dial(ctx context.Context, options *imapclient.Options) (*conn, error) {
	addr := c.Addr()

	var (
		raw    net.Conn
		client *imapclient.Client
		err    error
	)
	if c.tls {
		tlsDialer := &tls.Dialer{
			NetDialer: c.dialer,
			Config:    &tls.Config{ServerName: c.host},
		}
		raw, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		raw, err = c.dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	err = bounded(ctx, raw, c.fetchTimeout, func() error {
		if c.tls {
			client = imapclient.New(raw, options)
		} else {
			opts := imapclient.Options{}
			if options != nil {
				opts = *options
			}
			opts.TLSConfig = &tls.Config{ServerName: c.host}
			var err error
			if client, err = imapclient.NewStartTLS(raw, &opts); err != nil {
				return &TransportError{Op: "starttls", Err: err}
			}
		}

		if err := client.Login(c.username, c.password).Wait(); err != nil {
			return &TransportError{
				Op:  "login",
				Err: fmt.Errorf("authentication failed for %s: %w", c.username, err),
			}
		}
		return nil
	})
	if err != nil {
		if client != nil {
			_ = client.Close()
		} else {
			_ = raw.Close()
		}
		return nil, err
	}

	return &conn{client: client, raw: raw, timeout: c.fetchTimeout}, nil
}

// connect dials and selects the mailbox read-only.
func (c *IMAPClient) connect(ctx context.Context) (*conn, error) {
	cn, err := c.dial(ctx, nil)
	if err != nil {
		return nil, err
	}
	err = bounded(ctx, cn.raw, cn.timeout, func() error {
		if _, err := cn.client.Select(c.mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
			return &TransportError{Op: "select " + c.mailbox, Err: err}
		}
		return nil
	})
	if err != nil {
		_ = cn.client.Close()
		return nil, err
	}
	return cn, nil
}

// Search returns the UIDs of messages matching criteria, ascending.
func (c *IMAPClient) Search(ctx context.Context, criteria []Criterion) ([]imap.UID, error) {
	sc, err := ToSearchCriteria(criteria)
	if err != nil {
		return nil, fmt.Errorf("building search criteria: %w", err)
	}

	cn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer cn.logout()

	stop := context.AfterFunc(ctx, func() { _ = cn.client.Close() })
	defer stop()

	data, err := cn.client.UIDSearch(sc, nil).Wait()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Op: "search", Err: err}
	}

	uids := data.AllUIDs()
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

// FetchUIDs fetches and parses the messages with the given UIDs.
func (c *IMAPClient) FetchUIDs(ctx context.Context, uids []imap.UID, fn FetchFunc) error {
	if len(uids) == 0 {
		return nil
	}
	return c.fetch(ctx, imap.UIDSetNum(uids...), fn)
}

// FetchRange fetches and parses the messages with sequence numbers in
// [from, to].
func (c *IMAPClient) FetchRange(ctx context.Context, from, to uint32, fn FetchFunc) error {
	if from == 0 || to < from {
		return fmt.Errorf("invalid sequence range %d:%d", from, to)
	}
	var set imap.SeqSet
	set.AddRange(from, to)
	return c.fetch(ctx, set, fn)
}

func (c *IMAPClient) fetch(ctx context.Context, numSet imap.NumSet, fn FetchFunc) error {
	cn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cn.logout()

	stop := context.AfterFunc(ctx, func() { _ = cn.client.Close() })
	defer stop()

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := cn.client.Fetch(numSet, fetchOpts)
	defer fetchCmd.Close()

	for {
		// The deadline covers reading one message; a stalled server
		// fails the connection rather than hanging the pass.
		_ = cn.raw.SetReadDeadline(time.Now().Add(c.fetchTimeout))

		item := fetchCmd.Next()
		if item == nil {
			break
		}

		buf, err := item.Collect()
		if err != nil {
			break
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			fn(nil, &ParseError{Reason: fmt.Sprintf("message %d has no body", buf.SeqNum)})
			continue
		}

		msg, err := ParseMessage(raw)
		if err != nil {
			fn(nil, err)
			continue
		}
		msg.SeqNum = buf.SeqNum
		msg.UID = buf.UID
		fn(msg, nil)
	}

	if err := fetchCmd.Close(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &TransportError{Op: "fetch", Err: fmt.Errorf("message fetch timed out after %s: %w", c.fetchTimeout, err)}
		}
		return &TransportError{Op: "fetch", Err: err}
	}
	_ = cn.raw.SetReadDeadline(time.Time{})

	return nil
}
