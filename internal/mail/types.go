package mail

import (
	"time"

	"github.com/emersion/go-imap/v2"
)

// Message is the parsed view of a fetched mail item. It lives only for
// the duration of one processing pass.
type Message struct {
	SeqNum uint32
	UID    imap.UID

	MessageID string

	// From is the bare sender address, lower-cased.
	From    string
	Subject string
	Date    time.Time

	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// HasBody reports whether the message carries any text or html content.
func (m *Message) HasBody() bool {
	return m.TextBody != "" || m.HTMLBody != ""
}

// Attachment holds an attachment's metadata and content.
type Attachment struct {
	Filename string
	MIMEType string
	Size     int64
	Content  []byte
}

// NewMailEvent is emitted by the Watcher when the server reports new
// messages in the watched mailbox.
type NewMailEvent struct {
	NewMessageCount   uint32
	TotalMessageCount uint32
}

// SeqRange returns the inclusive sequence range covering the new
// messages. ok is false when the event carries nothing to fetch.
func (e NewMailEvent) SeqRange() (from, to uint32, ok bool) {
	if e.NewMessageCount == 0 || e.TotalMessageCount == 0 {
		return 0, 0, false
	}
	if e.NewMessageCount >= e.TotalMessageCount {
		return 1, e.TotalMessageCount, true
	}
	return e.TotalMessageCount - e.NewMessageCount + 1, e.TotalMessageCount, true
}
