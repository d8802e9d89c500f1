// Package proxmox handles vzdump backup status reports from
// virtualization hosts.
package proxmox

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/handlers/base"
	"github.com/sukhanovai/monitoring-sub002/handlers/common"
	"github.com/sukhanovai/monitoring-sub002/pkg/email"
	"github.com/sukhanovai/monitoring-sub002/pkg/patterns"
	"github.com/sukhanovai/monitoring-sub002/records"
)

const maxErrorMessageLen = 500

// Store is the write surface this handler needs.
type Store interface {
	InsertHostBackup(records.HostBackup) (bool, error)
}

// Handler extracts host-level backup reports.
type Handler struct {
	base.BaseHandler
	store Store
	lib   *patterns.Library
	log   *zap.Logger
}

// New creates the proxmox handler.
func New(store Store, lib *patterns.Library, log *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: base.NewBaseHandler("proxmox", base.PriorityHost),
		store:       store,
		lib:         lib,
		log:         log,
	}
}

// CanHandle matches on the vzdump subject wording or on a sender that
// looks like a virtualization host.
func (h *Handler) CanHandle(msg *email.Message) bool {
	subject := strings.ToLower(msg.Subject())
	if common.ContainsAny(subject, "vzdump backup status", "proxmox", "vzdump") {
		return true
	}
	if strings.Contains(subject, "backup") && strings.Contains(subject, "status") {
		return true
	}
	return common.ContainsAny(msg.From(), "pve", "bup", "localdomain")
}

// Handle extracts and persists one host backup report.
func (h *Handler) Handle(msg *email.Message) error {
	rec, err := h.Extract(msg)
	if err != nil {
		return err
	}

	inserted, err := h.store.InsertHostBackup(*rec)
	if err != nil {
		return common.NewPersistError("proxmox_backups", rec.HostName, err)
	}
	if !inserted {
		h.log.Debug("duplicate host backup ignored",
			zap.String("host", rec.HostName),
			zap.Time("received_at", rec.ReceivedAt))
	}
	return nil
}

// Extract pulls the host name and status out of the subject line and
// enriches the record from the body. The host name is required: when
// the subject carries no extractable host the report is dropped rather
// than guessed at.
func (h *Handler) Extract(msg *email.Message) (*records.HostBackup, error) {
	subject := common.UnwrapForwardedSubject(msg.Subject())

	m := h.lib.Match(patterns.CategoryHostname, subject)
	if m == nil {
		return nil, common.ErrNotApplicable
	}
	host := common.StripDomain(strings.TrimSpace(m[1]))
	if host == "" {
		return nil, common.ErrNotApplicable
	}

	rawStatus := common.AfterLastColon(subject)

	rec := &records.HostBackup{
		HostName:     host,
		Status:       patterns.NormalizeStatus(rawStatus),
		TaskType:     "vzdump",
		EmailSubject: common.Truncate(subject, 200),
		RawSubject:   common.Truncate(msg.Subject(), 200),
		ReceivedAt:   msg.ObservedAt(),
	}

	enrichFromBody(rec, msg.TextBody())

	return rec, nil
}

var (
	durationClockRe = regexp.MustCompile(`(?i)duration:?\s*(\d+):(\d{1,2}):(\d{1,2})`)
	durationUnitRe  = regexp.MustCompile(`(?i)(\d+)h\s*(\d{1,2})m(?:\s*(\d{1,2})s)?`)
	totalSizeRe     = regexp.MustCompile(`(?i)(?:total\s+size|size):?\s*([\d.]+)\s*([KMGT]?i?B)`)
	vmCountRe       = regexp.MustCompile(`(?i)vms?:\s*(\d+)\s+successful,\s*(\d+)\s+failed`)
)

// enrichFromBody fills the optional fields. Everything here is
// best-effort; a report without a body is still a valid record.
func enrichFromBody(rec *records.HostBackup, body string) {
	if body == "" {
		return
	}

	if m := durationClockRe.FindStringSubmatch(body); m != nil {
		rec.Duration = formatDuration(m[1], m[2], m[3])
	} else if m := durationUnitRe.FindStringSubmatch(body); m != nil {
		seconds := m[3]
		if seconds == "" {
			seconds = "0"
		}
		rec.Duration = formatDuration(m[1], m[2], seconds)
	}

	if m := totalSizeRe.FindStringSubmatch(body); m != nil {
		rec.TotalSize = m[1] + m[2]
	}

	if m := vmCountRe.FindStringSubmatch(body); m != nil {
		successful, _ := common.ParseInt(m[1])
		failed, _ := common.ParseInt(m[2])
		rec.SuccessfulVMs = successful
		rec.FailedVMs = failed
		rec.VMCount = successful + failed
	}

	// First line mentioning a failure becomes the error message;
	// short lines are skipped as noise (e.g. a bare "errors: 0"),
	// and so is the VM tally, whose "0 failed" is not a failure.
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) <= 10 || vmCountRe.MatchString(trimmed) {
			continue
		}
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
			rec.ErrorMessage = common.Truncate(trimmed, maxErrorMessageLen)
			break
		}
	}
}

func formatDuration(hours, minutes, seconds string) string {
	hh, _ := common.ParseInt(hours)
	mm, _ := common.ParseInt(minutes)
	ss, _ := common.ParseInt(seconds)
	return fmt.Sprintf("%dh%02dm%02ds", hh, mm, ss)
}
