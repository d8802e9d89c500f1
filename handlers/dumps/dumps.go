// Package dumps handles database dump completion reports. The
// company, client and cloud sources share one handler parameterized by
// their subject grammar; only the pattern category and the synthetic
// agent name differ.
package dumps

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/handlers/base"
	"github.com/sukhanovai/monitoring-sub002/handlers/common"
	"github.com/sukhanovai/monitoring-sub002/pkg/email"
	"github.com/sukhanovai/monitoring-sub002/pkg/patterns"
	"github.com/sukhanovai/monitoring-sub002/records"
)

// Store is the write surface this handler needs.
type Store interface {
	InsertDatabaseBackup(records.DatabaseBackup) (bool, error)
}

// Handler extracts one dump-report category. These reports only
// arrive when a dump completed, so a pattern match means success.
type Handler struct {
	base.BaseHandler
	store      Store
	lib        *patterns.Library
	category   string
	agentName  string
	backupType string
	taskType   string
	indicators []string
	displays   map[string]string
	log        *zap.Logger
}

// NewCompany creates the handler for the company database dumps
// reported by the sr-bup agent.
func NewCompany(store Store, lib *patterns.Library, displays map[string]string, log *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: base.NewBaseHandler("company-dumps", base.PriorityDatabase),
		store:       store,
		lib:         lib,
		category:    patterns.CategoryCompanyDB,
		agentName:   "sr-bup",
		backupType:  "company",
		taskType:    "dump",
		indicators:  []string{"sr-bup", "dump complete", "_dump"},
		displays:    displays,
		log:         log,
	}
}

// NewClient creates the handler for client 1C database dumps reported
// by the kc-1c agent.
func NewClient(store Store, lib *patterns.Library, displays map[string]string, log *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: base.NewBaseHandler("client-dumps", base.PriorityDatabase),
		store:       store,
		lib:         lib,
		category:    patterns.CategoryClientDB,
		agentName:   "kc-1c",
		backupType:  "client",
		taskType:    "dump",
		indicators:  []string{"kc-1c", "rubicon-1c"},
		displays:    displays,
		log:         log,
	}
}

// NewYandex creates the handler for cloud backup confirmations.
func NewYandex(store Store, lib *patterns.Library, displays map[string]string, log *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: base.NewBaseHandler("yandex-backups", base.PriorityDatabase),
		store:       store,
		lib:         lib,
		category:    patterns.CategoryYandexDB,
		agentName:   "yandex-cloud",
		backupType:  "yandex",
		taskType:    "cloud",
		indicators:  []string{"yandex"},
		displays:    displays,
		log:         log,
	}
}

// CanHandle matches the category's subject indicators.
func (h *Handler) CanHandle(msg *email.Message) bool {
	return common.ContainsAny(msg.Subject(), h.indicators...)
}

// Handle extracts and persists one dump report.
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
		h.log.Debug("duplicate dump report ignored",
			zap.String("type", rec.BackupType),
			zap.String("database", rec.DatabaseName))
	}
	return nil
}

// Extract pulls the database name out of the subject. The name is
// required; without it nothing is persisted.
func (h *Handler) Extract(msg *email.Message) (*records.DatabaseBackup, error) {
	subject := common.UnwrapForwardedSubject(msg.Subject())

	m := h.lib.Match(h.category, subject)
	if m == nil {
		return nil, common.ErrNotApplicable
	}

	name := strings.TrimSpace(m[1])
	if name == "" {
		return nil, common.ErrNotApplicable
	}

	display := name
	if label, ok := h.displays[name]; ok {
		display = label
	}

	return &records.DatabaseBackup{
		HostName:     h.agentName,
		DatabaseName: name,
		DisplayName:  display,
		Status:       records.StatusSuccess,
		BackupType:   h.backupType,
		TaskType:     h.taskType,
		EmailSubject: common.Truncate(subject, 200),
		ReceivedAt:   msg.ObservedAt(),
	}, nil
}
