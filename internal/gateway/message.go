package gateway

import (
	"bytes"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foxzi/postcard/internal/email"
)

// Message is a rendered email ready for delivery
type Message struct {
	ID      string            `json:"id"`
	From    string            `json:"from"`
	To      string            `json:"to"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Text    string            `json:"text,omitempty"`
	Tag     string            `json:"tag,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// MessageID returns the RFC 5322 Message-ID of m, assigning an ID if unset
func (m *Message) MessageID() string {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return fmt.Sprintf("<%s@%s>", m.ID, email.Domain(m.From, "localhost"))
}

// Bytes builds the RFC 5322 representation of m. HTML and text parts are sent
// as multipart/alternative when both are present.
func (m *Message) Bytes(now time.Time) []byte {
	var buf bytes.Buffer

	writeHeader(&buf, "From", m.From)
	writeHeader(&buf, "To", m.To)
	if m.ReplyTo != "" {
		writeHeader(&buf, "Reply-To", m.ReplyTo)
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	writeHeader(&buf, "Date", now.Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", m.MessageID())
	if m.Tag != "" {
		writeHeader(&buf, "X-Postcard-Tag", m.Tag)
	}

	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(&buf, k, m.Headers[k])
	}

	writeHeader(&buf, "MIME-Version", "1.0")

	switch {
	case m.HTML != "" && m.Text != "":
		boundary := "postcard-" + uuid.New().String()
		writeHeader(&buf, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
		buf.WriteString("\r\n")

		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		writePart(&buf, "text/plain", m.Text)
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		writePart(&buf, "text/html", m.HTML)
		fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	case m.HTML != "":
		writePart(&buf, "text/html", m.HTML)
	default:
		writePart(&buf, "text/plain", m.Text)
	}

	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	// Header values must not carry line breaks.
	value = strings.NewReplacer("\r", "", "\n", " ").Replace(value)
	fmt.Fprintf(buf, "%s: %s\r\n", name, value)
}

func writePart(buf *bytes.Buffer, contentType, body string) {
	fmt.Fprintf(buf, "Content-Type: %s; charset=utf-8\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")

	qp := quotedprintable.NewWriter(buf)
	qp.Write([]byte(body))
	qp.Close()
	buf.WriteString("\r\n")
}
