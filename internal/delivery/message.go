package delivery

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is one rendered campaign email addressed to its recipients
type Message struct {
	ID        string            `json:"id"`
	From      string            `json:"from"`
	To        []string          `json:"to"`
	ReplyTo   string            `json:"reply_to,omitempty"`
	Subject   string            `json:"subject"`
	HTML      string            `json:"html,omitempty"`
	Text      string            `json:"text,omitempty"`
	Tag       string            `json:"tag,omitempty"` // template slug
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage creates a message with a fresh ID
func NewMessage(from string, to []string, subject string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Subject:   subject,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the envelope and that there is a body to send
func (m *Message) Validate() error {
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("%w: invalid from address: %v", ErrInvalidMessage, err)
	}
	if len(m.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrInvalidMessage)
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("%w: invalid recipient %q: %v", ErrInvalidMessage, to, err)
		}
	}
	if m.ReplyTo != "" {
		if _, err := mail.ParseAddress(m.ReplyTo); err != nil {
			return fmt.Errorf("%w: invalid reply-to address: %v", ErrInvalidMessage, err)
		}
	}
	if m.HTML == "" && m.Text == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}

// EnvelopeFrom returns the bare sender address for MAIL FROM
func (m *Message) EnvelopeFrom() string {
	addr, err := mail.ParseAddress(m.From)
	if err != nil {
		return m.From
	}
	return addr.Address
}

// EnvelopeTo returns the bare recipient addresses for RCPT TO
func (m *Message) EnvelopeTo() []string {
	out := make([]string, 0, len(m.To))
	for _, to := range m.To {
		if addr, err := mail.ParseAddress(to); err == nil {
			out = append(out, addr.Address)
		} else {
			out = append(out, to)
		}
	}
	return out
}

// MessageID returns the RFC 5322 Message-ID for hostname
func (m *Message) MessageID(hostname string) string {
	return fmt.Sprintf("<%s@%s>", m.ID, hostname)
}

// BuildMIME renders msg as an RFC 5322 message with CRLF line endings.
// Both bodies are sent as multipart/alternative.
func BuildMIME(msg *Message, hostname string) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	from, _ := mail.ParseAddress(msg.From)
	date := msg.CreatedAt
	if date.IsZero() {
		date = time.Now()
	}

	var buf bytes.Buffer
	writeHeader(&buf, "From", from.String())
	writeHeader(&buf, "To", formatAddressList(msg.To))
	if msg.ReplyTo != "" {
		replyTo, _ := mail.ParseAddress(msg.ReplyTo)
		writeHeader(&buf, "Reply-To", replyTo.String())
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", singleLine(msg.Subject)))
	writeHeader(&buf, "Date", date.Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", msg.MessageID(hostname))
	writeHeader(&buf, "MIME-Version", "1.0")

	names := make([]string, 0, len(msg.Headers))
	for name := range msg.Headers {
		if validHeaderName(name) && !reservedHeaders[textproto.CanonicalMIMEHeaderKey(name)] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		writeHeader(&buf, textproto.CanonicalMIMEHeaderKey(name), singleLine(msg.Headers[name]))
	}

	switch {
	case msg.HTML != "" && msg.Text != "":
		mw := multipart.NewWriter(&buf)
		if err := mw.SetBoundary("fgmail-" + strings.ReplaceAll(msg.ID, "-", "")); err != nil {
			return nil, fmt.Errorf("failed to set boundary: %w", err)
		}
		writeHeader(&buf, "Content-Type", `multipart/alternative; boundary="`+mw.Boundary()+`"`)
		buf.WriteString("\r\n")

		for _, part := range []struct{ contentType, body string }{
			{"text/plain; charset=utf-8", msg.Text},
			{"text/html; charset=utf-8", msg.HTML},
		} {
			w, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":              {part.contentType},
				"Content-Transfer-Encoding": {"quoted-printable"},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create part: %w", err)
			}
			if err := writeQuotedPrintable(w, part.body); err != nil {
				return nil, err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("failed to close multipart body: %w", err)
		}
	case msg.HTML != "":
		writeHeader(&buf, "Content-Type", "text/html; charset=utf-8")
		writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		if err := writeQuotedPrintable(&buf, msg.HTML); err != nil {
			return nil, err
		}
	default:
		writeHeader(&buf, "Content-Type", "text/plain; charset=utf-8")
		writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		if err := writeQuotedPrintable(&buf, msg.Text); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// reservedHeaders are produced by BuildMIME and cannot be overridden
var reservedHeaders = map[string]bool{
	"From": true, "To": true, "Cc": true, "Bcc": true, "Reply-To": true,
	"Subject": true, "Date": true, "Message-Id": true, "Mime-Version": true,
	"Content-Type": true, "Content-Transfer-Encoding": true,
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func writeQuotedPrintable(w io.Writer, body string) error {
	qp := quotedprintable.NewWriter(w)
	body = strings.ReplaceAll(body, "\r\n", "\n")
	if _, err := qp.Write([]byte(strings.ReplaceAll(body, "\n", "\r\n"))); err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}
	return nil
}

func formatAddressList(list []string) string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if addr, err := mail.ParseAddress(s); err == nil {
			out = append(out, addr.String())
		}
	}
	return strings.Join(out, ", ")
}

func validHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c > '~' || c == ':' {
			return false
		}
	}
	return true
}

// singleLine strips line breaks so values cannot inject headers
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
