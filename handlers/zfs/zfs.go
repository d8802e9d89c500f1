// Package zfs handles storage-pool health reports built from zpool
// status output.
package zfs

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/handlers/base"
	"github.com/sukhanovai/monitoring-sub002/handlers/common"
	"github.com/sukhanovai/monitoring-sub002/pkg/email"
	"github.com/sukhanovai/monitoring-sub002/records"
)

// Store is the write surface this handler needs.
type Store interface {
	InsertPoolHealth(records.PoolHealth) error
}

// Handler extracts pool health observations. One email may report
// several pools; each becomes its own row.
type Handler struct {
	base.BaseHandler
	store Store
	log   *zap.Logger
}

// New creates the zfs handler.
func New(store Store, log *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: base.NewBaseHandler("zfs", base.PriorityAuxiliary),
		store:       store,
		log:         log,
	}
}

// CanHandle matches pool-health vocabulary in the subject.
func (h *Handler) CanHandle(msg *email.Message) bool {
	return common.ContainsAny(msg.Subject(), "zfs", "pool", "scrub", "dataset", "raid")
}

// Handle extracts and persists the pool observations.
func (h *Handler) Handle(msg *email.Message) error {
	pools := h.Extract(msg)
	if len(pools) == 0 {
		return common.ErrNotApplicable
	}

	for _, pool := range pools {
		if err := h.store.InsertPoolHealth(pool); err != nil {
			return common.NewPersistError("zfs_pools", pool.PoolName, err)
		}
	}
	return nil
}

var (
	poolRe  = regexp.MustCompile(`(?im)^\s*pool:\s*(\S+)`)
	stateRe = regexp.MustCompile(`(?im)^\s*state:\s*(\S+)`)
	sizeRe  = regexp.MustCompile(`(?im)^\s*size:\s*(\S+)`)
	usedRe  = regexp.MustCompile(`(?im)^\s*(?:used|alloc(?:ated)?):\s*(\S+)`)
	availRe = regexp.MustCompile(`(?im)^\s*(?:avail(?:able)?|free):\s*(\S+)`)
)

// Extract splits the body into per-pool sections and reads the health
// fields of each. Missing optional fields stay empty.
func (h *Handler) Extract(msg *email.Message) []records.PoolHealth {
	body := msg.TextBody()
	if body == "" {
		return nil
	}

	poolMatches := poolRe.FindAllStringSubmatchIndex(body, -1)
	if poolMatches == nil {
		return nil
	}

	observedAt := msg.ObservedAt()
	var pools []records.PoolHealth

	for i, loc := range poolMatches {
		sectionStart := loc[0]
		sectionEnd := len(body)
		if i+1 < len(poolMatches) {
			sectionEnd = poolMatches[i+1][0]
		}
		section := body[sectionStart:sectionEnd]

		pool := records.PoolHealth{
			PoolName:   body[loc[2]:loc[3]],
			Health:     firstCapture(stateRe, section),
			Size:       firstCapture(sizeRe, section),
			Used:       firstCapture(usedRe, section),
			Available:  firstCapture(availRe, section),
			ScrubDate:  scrubLine(section),
			ReportedAt: observedAt,
		}
		pool.Status = healthStatus(pool.Health)
		pools = append(pools, pool)
	}

	return pools
}

func firstCapture(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// scrubLine returns the scan/scrub summary line of a section.
func scrubLine(section string) string {
	if line := common.FindStringWithoutMarkers(section, "scan:", "\n"); line != "" {
		return line
	}
	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "scrub") {
			return trimmed
		}
	}
	return ""
}

func healthStatus(health string) string {
	switch strings.ToUpper(health) {
	case "ONLINE":
		return records.StatusSuccess
	case "DEGRADED":
		return records.StatusWarning
	case "FAULTED", "UNAVAIL", "REMOVED", "OFFLINE":
		return records.StatusFailed
	case "":
		return records.StatusUnknown
	default:
		return strings.ToLower(health)
	}
}
