package mail

import (
	"bytes"
	"errors"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// ParseMessage parses a raw RFC 5322 message into a Message. It fails
// with a ParseError when the sender is missing or the message carries
// neither a text nor an html body.
func ParseMessage(raw []byte) (*Message, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{Reason: "reading headers", Err: err}
	}
	defer mr.Close()

	msg := &Message{}

	from, err := mr.Header.AddressList("From")
	if err != nil {
		return nil, &ParseError{Reason: "parsing From header", Err: err}
	}
	if len(from) == 0 || from[0].Address == "" {
		return nil, &ParseError{Reason: "missing sender"}
	}
	msg.From = strings.ToLower(from[0].Address)

	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = mr.Header.Get("Subject")
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}
	if id, err := mr.Header.MessageID(); err == nil {
		msg.MessageID = id
	}

	msg.TextBody, msg.HTMLBody, msg.Attachments, err = parseMIMEBody(mr)
	if err != nil {
		return nil, &ParseError{Reason: "reading body", Err: err}
	}
	if !msg.HasBody() {
		return nil, &ParseError{Reason: "no text or html body"}
	}

	return msg, nil
}

// parseMIMEBody walks every part of mr, keeping the first text/plain and
// text/html bodies and all attachments.
func parseMIMEBody(mr *gomail.Reader) (
	textBody string, htmlBody string, attachments []Attachment, err error,
) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A broken trailing part should not discard what was read.
			if textBody != "" || htmlBody != "" {
				break
			}
			return "", "", nil, err
		}

		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			contentType, _, _ := h.ContentType()
			if contentType == "" {
				contentType = "text/plain"
			}
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain") && textBody == "":
				textBody = string(body)
			case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
				htmlBody = string(body)
			}

		case *gomail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			attachments = append(attachments, Attachment{
				Filename: filename,
				MIMEType: contentType,
				Size:     int64(len(body)),
				Content:  body,
			})
		}
	}

	return textBody, htmlBody, attachments, nil
}
