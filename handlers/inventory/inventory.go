// Package inventory handles stock-report emails. The payload is the
// attached spreadsheet: each attachment is saved to disk under a
// timestamped name and an audit row is written per file.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/handlers/base"
	"github.com/sukhanovai/monitoring-sub002/handlers/common"
	"github.com/sukhanovai/monitoring-sub002/pkg/email"
	"github.com/sukhanovai/monitoring-sub002/records"
)

// Store is the write surface this handler needs.
type Store interface {
	InsertInventoryReport(records.InventoryReport) error
}

// Handler saves inventory attachments.
type Handler struct {
	base.BaseHandler
	store Store
	dir   string
	log   *zap.Logger
}

// New creates the inventory handler. dir is where attachments land.
func New(store Store, dir string, log *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: base.NewBaseHandler("inventory", base.PriorityAuxiliary),
		store:       store,
		dir:         dir,
		log:         log,
	}
}

// CanHandle requires both the inventory subject wording and at least
// one attachment; an announcement without a file carries no report.
func (h *Handler) CanHandle(msg *email.Message) bool {
	if !common.ContainsAny(msg.Subject(), "inventory", "stock", "остатки") {
		return false
	}
	return len(msg.Attachments()) > 0
}

// Handle saves every attachment and records an audit row for each. A
// single corrupt attachment is logged and skipped; the rest of the
// email is still processed.
func (h *Handler) Handle(msg *email.Message) error {
	attachments := msg.Attachments()
	if len(attachments) == 0 {
		return common.ErrNotApplicable
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return common.NewPersistError("inventory_reports", h.dir, err)
	}

	observedAt := msg.ObservedAt()
	subject := common.Truncate(msg.Subject(), 200)
	saved := 0

	for _, att := range attachments {
		name := fmt.Sprintf("%s_%s", observedAt.UTC().Format("20060102_150405"), sanitizeFilename(att.Filename))
		path := filepath.Join(h.dir, name)

		if err := os.WriteFile(path, att.Data, 0o644); err != nil {
			h.log.Warn("failed to save inventory attachment",
				zap.String("filename", att.Filename),
				zap.Error(err))
			continue
		}

		err := h.store.InsertInventoryReport(records.InventoryReport{
			Filename:     att.Filename,
			ContentType:  att.ContentType,
			SizeBytes:    len(att.Data),
			SavedPath:    path,
			EmailSubject: subject,
			ReceivedAt:   observedAt,
		})
		if err != nil {
			return common.NewPersistError("inventory_reports", att.Filename, err)
		}
		saved++
	}

	if saved == 0 {
		return fmt.Errorf("no inventory attachment could be saved")
	}
	return nil
}

// sanitizeFilename strips path separators and control characters from
// an attachment name before it touches the filesystem.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '_'
		case r < 0x20:
			return -1
		default:
			return r
		}
	}, name)
}
