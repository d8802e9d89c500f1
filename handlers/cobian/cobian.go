// Package cobian handles reports from the regional Cobian backup
// installation. This is the one category where status is computed from
// the error counter in the subject rather than mapped from a phrase.
package cobian

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/handlers/base"
	"github.com/sukhanovai/monitoring-sub002/handlers/common"
	"github.com/sukhanovai/monitoring-sub002/pkg/email"
	"github.com/sukhanovai/monitoring-sub002/pkg/patterns"
	"github.com/sukhanovai/monitoring-sub002/records"
)

// agentName attributes the report to the regional backup agent; these
// reports do not originate from a monitored host.
const agentName = "brn-backup"

// Store is the write surface this handler needs.
type Store interface {
	InsertDatabaseBackup(records.DatabaseBackup) (bool, error)
}

// Handler extracts regional backup-tool reports.
type Handler struct {
	base.BaseHandler
	store    Store
	lib      *patterns.Library
	displays map[string]string
	log      *zap.Logger
}

// New creates the cobian handler. displays maps job names to the
// labels shown on dashboards; nil is fine.
func New(store Store, lib *patterns.Library, displays map[string]string, log *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: base.NewBaseHandler("cobian", base.PriorityDatabase),
		store:       store,
		lib:         lib,
		displays:    displays,
		log:         log,
	}
}

// CanHandle matches the regional tool's subject wording.
func (h *Handler) CanHandle(msg *email.Message) bool {
	return common.ContainsAny(msg.Subject(), "cobian", "brn backup", "brn-backup")
}

// Handle extracts and persists one regional backup report.
func (h *Handler) Handle(msg *email.Message) error {
	rec, err := h.Extract(msg)
	if err != nil {
		return err
	}

	inserted, err := h.store.InsertDatabaseBackup(*rec)
	if err != nil {
		return common.NewPersistError("database_backups", rec.DatabaseName, err)
	}
	if !inserted {
		h.log.Debug("duplicate regional backup ignored",
			zap.String("database", rec.DatabaseName))
	}
	return nil
}

// Extract pulls the job name and error counter out of the subject.
// Status is success exactly when the counter is zero.
func (h *Handler) Extract(msg *email.Message) (*records.DatabaseBackup, error) {
	subject := common.UnwrapForwardedSubject(msg.Subject())

	m := h.lib.Match(patterns.CategoryBarnaulDB, subject)
	if m == nil {
		return nil, common.ErrNotApplicable
	}

	name := strings.TrimSpace(m[1])
	errorCount, err := common.ParseInt(m[2])
	if err != nil {
		return nil, common.ErrNotApplicable
	}

	status := records.StatusSuccess
	if errorCount > 0 {
		status = records.StatusFailed
	}

	return &records.DatabaseBackup{
		HostName:     agentName,
		DatabaseName: name,
		DisplayName:  displayName(h.displays, name),
		Status:       status,
		BackupType:   "barnaul",
		TaskType:     "cobian",
		ErrorCount:   errorCount,
		EmailSubject: common.Truncate(subject, 200),
		ReceivedAt:   msg.ObservedAt(),
	}, nil
}

func displayName(displays map[string]string, name string) string {
	if label, ok := displays[name]; ok {
		return label
	}
	return name
}
