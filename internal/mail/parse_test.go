package mail

import (
	"strings"
	"testing"
	"time"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseMessage_PlainText(t *testing.T) {
	raw := crlf(`From: "Bank Alerts" <Alerts@Bank.Example>
To: me@example.com
Subject: Transaction alert
Date: Mon, 02 Jan 2023 10:15:00 +0530
Message-ID: <abc@bank.example>
Content-Type: text/plain; charset=utf-8

Rs.500.00 debited from Ac XX4321 on 02-01-2023
`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.From != "alerts@bank.example" {
		t.Errorf("From = %q, want lower-cased address", msg.From)
	}
	if msg.Subject != "Transaction alert" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	want := time.Date(2023, 1, 2, 4, 45, 0, 0, time.UTC)
	if !msg.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", msg.Date, want)
	}
	if !strings.Contains(msg.TextBody, "Rs.500.00 debited") {
		t.Errorf("TextBody = %q", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		t.Errorf("HTMLBody = %q, want empty", msg.HTMLBody)
	}
}

func TestParseMessage_MultipartWithAttachment(t *testing.T) {
	raw := crlf(`From: alerts@axisbank.com
Subject: =?UTF-8?B?QWxlcnQ=?=
Date: Tue, 03 Jan 2023 08:00:00 +0000
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

INR 120.50 credited
--inner
Content-Type: text/html; charset=utf-8
Content-Transfer-Encoding: quoted-printable

<p>INR 120.50 credited</p>=0A
--inner--
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="statement.pdf"

PDFDATA
--outer--
`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Subject != "Alert" {
		t.Errorf("Subject = %q, want decoded Alert", msg.Subject)
	}
	if !strings.Contains(msg.TextBody, "INR 120.50 credited") {
		t.Errorf("TextBody = %q", msg.TextBody)
	}
	if !strings.Contains(msg.HTMLBody, "<p>INR 120.50 credited</p>") {
		t.Errorf("HTMLBody = %q", msg.HTMLBody)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.Filename != "statement.pdf" || att.MIMEType != "application/pdf" {
		t.Errorf("attachment = %+v", att)
	}
	if att.Size != int64(len(att.Content)) || att.Size == 0 {
		t.Errorf("attachment size = %d, content = %d bytes", att.Size, len(att.Content))
	}
}

func TestParseMessage_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "missing sender",
			raw: `Subject: hi
Content-Type: text/plain

body
`,
		},
		{
			name: "no body",
			raw: `From: alerts@bank.example
Subject: empty
Content-Type: text/plain

`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage(crlf(tt.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsParseError(err) {
				t.Errorf("expected ParseError, got %T: %v", err, err)
			}
		})
	}
}

func TestNewMailEvent_SeqRange(t *testing.T) {
	tests := []struct {
		ev       NewMailEvent
		from, to uint32
		ok       bool
	}{
		{NewMailEvent{NewMessageCount: 1, TotalMessageCount: 10}, 10, 10, true},
		{NewMailEvent{NewMessageCount: 3, TotalMessageCount: 10}, 8, 10, true},
		{NewMailEvent{NewMessageCount: 10, TotalMessageCount: 10}, 1, 10, true},
		{NewMailEvent{NewMessageCount: 0, TotalMessageCount: 10}, 0, 0, false},
	}
	for _, tt := range tests {
		from, to, ok := tt.ev.SeqRange()
		if from != tt.from || to != tt.to || ok != tt.ok {
			t.Errorf("%+v.SeqRange() = %d, %d, %v; want %d, %d, %v",
				tt.ev, from, to, ok, tt.from, tt.to, tt.ok)
		}
	}
}

func TestIsTransportError(t *testing.T) {
	err := &TransportError{Op: "dial", Err: errSessionClosed}
	wrapped := &ParseError{Reason: "outer", Err: err}

	if !IsTransportError(err) {
		t.Error("expected TransportError to match")
	}
	if !IsTransportError(wrapped) {
		t.Error("expected wrapped TransportError to match")
	}
	if IsTransportError(errSessionClosed) {
		t.Error("plain error should not match")
	}
}
