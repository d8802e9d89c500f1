// Package email parses raw notification emails into a normalized form
// consumed by the report handlers.
package email

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Message is a fully parsed email. Header keys are lowercased. A
// Message is immutable once constructed and shared read-only across
// all handlers during one routing pass.
type Message struct {
	Headers    map[string][]string
	Parts      []Part
	ReceivedAt time.Time
}

// Part is one decoded MIME part. Body holds the part payload after
// transfer-encoding and charset decoding.
type Part struct {
	ContentType string
	Filename    string
	Disposition string
	Headers     map[string][]string
	Body        []byte
	Parts       []Part
}

// Attachment is a decoded file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Header returns the first value of the named header, or "".
func (m *Message) Header(name string) string {
	if m.Headers == nil {
		return ""
	}
	if vals, ok := m.Headers[strings.ToLower(name)]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Subject returns the decoded Subject header.
func (m *Message) Subject() string {
	return m.Header("subject")
}

// From returns the sender address, lowercased, without the display
// name. Falls back to the raw header value when it is not in
// "Name <addr>" form.
func (m *Message) From() string {
	from := m.Header("from")
	if start := strings.Index(from, "<"); start != -1 {
		if end := strings.Index(from[start:], ">"); end != -1 {
			return strings.ToLower(strings.TrimSpace(from[start+1 : start+end]))
		}
	}
	return strings.ToLower(strings.TrimSpace(from))
}

// To returns the recipient address in the same form as From.
func (m *Message) To() string {
	to := m.Header("to")
	if start := strings.Index(to, "<"); start != -1 {
		if end := strings.Index(to[start:], ">"); end != -1 {
			return strings.ToLower(strings.TrimSpace(to[start+1 : start+end]))
		}
	}
	return strings.ToLower(strings.TrimSpace(to))
}

// Date parses the Date header, returning nil when absent or
// unparseable.
func (m *Message) Date() *time.Time {
	return ParseDate(m.Header("date"))
}

// ObservedAt is the timestamp a report row is keyed on: the Date
// header when parseable, otherwise the ingestion time.
func (m *Message) ObservedAt() time.Time {
	if d := m.Date(); d != nil {
		return *d
	}
	return m.ReceivedAt
}

// TextBody returns the first text/plain part, searching nested
// multiparts depth-first. When no plain part exists, the first
// text/html part is reduced to its text content. Returns "" when the
// message has no textual part at all.
func (m *Message) TextBody() string {
	if body, ok := findText(m.Parts, "text/plain"); ok {
		return body
	}
	if html, ok := findText(m.Parts, "text/html"); ok {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return ""
		}
		return strings.ReplaceAll(doc.Text(), " ", " ")
	}
	return ""
}

func findText(parts []Part, contentType string) (string, bool) {
	for _, part := range parts {
		if part.Disposition == "attachment" {
			continue
		}
		if part.ContentType == contentType {
			return string(part.Body), true
		}
		if nested, ok := findText(part.Parts, contentType); ok {
			return nested, true
		}
	}
	return "", false
}

// Attachments returns every part carrying a filename or an attachment
// disposition, including parts nested inside multiparts.
func (m *Message) Attachments() []Attachment {
	return collectAttachments(m.Parts, nil)
}

func collectAttachments(parts []Part, acc []Attachment) []Attachment {
	for _, part := range parts {
		if part.Filename != "" || part.Disposition == "attachment" {
			name := part.Filename
			if name == "" {
				name = "unnamed"
			}
			acc = append(acc, Attachment{
				Filename:    name,
				ContentType: part.ContentType,
				Data:        part.Body,
			})
			continue
		}
		acc = collectAttachments(part.Parts, acc)
	}
	return acc
}

// ParseDate parses an RFC 5322 date string from email headers, trying
// the layouts seen in the wild. Returns nil when nothing matches.
func ParseDate(dateStr string) *time.Time {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return nil
	}

	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 MST",
		"Mon, 02 Jan 2006 15:04:05 -0700 (MST)",
		"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
		"Mon, 2 Jan 2006 15:04 -0700",
		"2 Jan 2006 15:04 -0700",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return &t
		}
	}

	return nil
}
