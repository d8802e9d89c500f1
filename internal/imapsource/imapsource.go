// Package imapsource pulls report emails from an IMAP mailbox and
// feeds them to the router. It is the ingestion path for deployments
// where the reports land in a remote mailbox instead of the local
// maildir.
package imapsource

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/internal/config"
	"github.com/sukhanovai/monitoring-sub002/pkg/email"
)

// Routing is the slice of the router the fetcher needs.
type Routing interface {
	RouteMessage(msg *email.Message) bool
}

// Fetcher holds the IMAP connection.
type Fetcher struct {
	cfg    config.IMAPConfig
	client *client.Client
	router Routing
	log    *zap.Logger
}

// New creates a Fetcher. Connect must be called before FetchAndRoute.
func New(cfg config.IMAPConfig, router Routing, log *zap.Logger) *Fetcher {
	return &Fetcher{cfg: cfg, router: router, log: log}
}

// Connect dials the IMAP server over TLS and logs in.
func (f *Fetcher) Connect() error {
	addr := fmt.Sprintf("%s:%d", f.cfg.Server, f.cfg.Port)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(f.cfg.Email, f.cfg.Password); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	f.client = c
	f.log.Info("imap login successful", zap.String("server", addr))
	return nil
}

// Disconnect closes the IMAP connection.
func (f *Fetcher) Disconnect() error {
	if f.client != nil {
		return f.client.Logout()
	}
	return nil
}

// FetchAndRoute fetches messages from the last N days and routes each
// one. Returns the number of messages a handler processed. Messages
// that fail to parse are logged and skipped.
func (f *Fetcher) FetchAndRoute(days int) (int, error) {
	if f.client == nil {
		return 0, fmt.Errorf("not connected to IMAP server")
	}

	mbox, err := f.client.Select(f.cfg.Folder, false)
	if err != nil {
		return 0, fmt.Errorf("failed to select mailbox %s: %w", f.cfg.Folder, err)
	}
	if mbox.Messages == 0 {
		return 0, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().AddDate(0, 0, -days)

	uids, err := f.client.UidSearch(criteria)
	if err != nil {
		return 0, fmt.Errorf("failed to search emails: %w", err)
	}
	if len(uids) == 0 {
		return 0, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- f.client.UidFetch(seqSet, items, messages)
	}()

	processed := 0
	for msg := range messages {
		parsed, err := f.parseMessage(msg, section)
		if err != nil {
			f.log.Warn("failed to parse imap message", zap.Error(err))
			continue
		}
		if parsed == nil {
			continue
		}
		if f.router.RouteMessage(parsed) {
			processed++
		}
	}

	if err := <-done; err != nil {
		return processed, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return processed, nil
}

// parseMessage converts one IMAP message into the normalized form the
// handlers consume.
func (f *Fetcher) parseMessage(msg *imap.Message, section *imap.BodySectionName) (*email.Message, error) {
	if msg == nil || msg.Envelope == nil {
		return nil, nil
	}

	parsed := &email.Message{
		Headers:    make(map[string][]string),
		ReceivedAt: time.Now(),
	}
	parsed.Headers["subject"] = []string{msg.Envelope.Subject}
	if !msg.Envelope.Date.IsZero() {
		parsed.Headers["date"] = []string{msg.Envelope.Date.Format(time.RFC1123Z)}
	}
	if len(msg.Envelope.From) > 0 {
		parsed.Headers["from"] = []string{msg.Envelope.From[0].Address()}
	}
	if len(msg.Envelope.To) > 0 {
		parsed.Headers["to"] = []string{msg.Envelope.To[0].Address()}
	}

	r := msg.GetBody(section)
	if r == nil {
		return parsed, nil
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		// Keep the envelope; subject-only extraction still works
		// for most categories.
		return parsed, nil
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			parsed.Parts = append(parsed.Parts, email.Part{
				ContentType: normalizeContentType(contentType),
				Body:        body,
			})
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			parsed.Parts = append(parsed.Parts, email.Part{
				ContentType: normalizeContentType(contentType),
				Filename:    filename,
				Disposition: "attachment",
				Body:        body,
			})
		}
	}

	return parsed, nil
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return "text/plain"
	}
	return strings.ToLower(contentType)
}
