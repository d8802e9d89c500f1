// Package report derives per-source health from recent rows and
// renders the morning summary.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/sukhanovai/monitoring-sub002/internal/storage"
	"github.com/sukhanovai/monitoring-sub002/records"
)

// Derived health states. These extend the stored status vocabulary
// with freshness information.
const (
	StateSuccess      = "success"
	StateFailed       = "failed"
	StateRecentFailed = "recent_failed"
	StateRecentErrors = "recent_errors"
	StateWarning      = "warning"
	StateOld          = "old"
	StateStale        = "stale"
	StateUnknown      = "unknown"
)

// staleThreshold is how long a source may stay silent before it is
// reported as stale; oldThreshold marks the softer "getting old" tier.
const (
	staleThreshold = 48 * time.Hour
	oldThreshold   = 24 * time.Hour
)

// HostState derives the health of one host from its newest reports
// (newest first). The last report dominates; a failure anywhere in
// the last three still taints the state.
func HostState(recent []storage.BackupSummary, now time.Time) string {
	if len(recent) == 0 {
		return StateStale
	}

	if recent[0].Status == records.StatusFailed {
		return StateFailed
	}

	for _, b := range firstN(recent, 3) {
		if b.Status == records.StatusFailed {
			return StateRecentFailed
		}
	}

	return freshness(now, recent[0].ReceivedAt)
}

// DatabaseState derives the health of one database from its newest
// dump rows (newest first). Error counters add a warning tier that
// host reports do not have.
func DatabaseState(recent []storage.DatabaseSummary, now time.Time) string {
	if len(recent) == 0 {
		return StateStale
	}

	last := recent[0]
	if last.Status == records.StatusFailed {
		return StateFailed
	}
	if last.ErrorCount > 0 {
		return StateWarning
	}

	for _, d := range firstN(recent, 3) {
		if d.Status == records.StatusFailed {
			return StateRecentFailed
		}
	}
	for _, d := range firstN(recent, 3) {
		if d.ErrorCount > 0 {
			return StateRecentErrors
		}
	}

	return freshness(now, last.ReceivedAt)
}

func freshness(now, last time.Time) string {
	if last.IsZero() {
		return StateUnknown
	}
	age := now.Sub(last)
	switch {
	case age > staleThreshold:
		return StateStale
	case age > oldThreshold:
		return StateOld
	default:
		return StateSuccess
	}
}

func firstN[T any](items []T, n int) []T {
	if len(items) < n {
		return items
	}
	return items[:n]
}

// FormatAgo renders a time as "2d 3h ago" style text.
func FormatAgo(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	hours := int(now.Sub(t).Hours())
	if hours < 0 {
		hours = 0
	}
	if hours >= 24 {
		return fmt.Sprintf("%dd %dh ago", hours/24, hours%24)
	}
	return fmt.Sprintf("%dh ago", hours)
}

// Summary builds the plain-text morning report: today's host roll-up,
// the per-database aggregates and any stale sources.
func Summary(store *storage.Store, loc *time.Location) (string, error) {
	now := time.Now()
	var b strings.Builder

	b.WriteString("Backup status report\n")
	b.WriteString("====================\n\n")

	today, err := store.TodayStatus(loc)
	if err != nil {
		return "", err
	}
	b.WriteString("Today:\n")
	if len(today) == 0 {
		b.WriteString("  no reports yet\n")
	}
	for _, sc := range today {
		fmt.Fprintf(&b, "  %-16s %-10s %d\n", sc.Host, sc.Status, sc.Count)
	}

	stats, err := store.DatabaseStats()
	if err != nil {
		return "", err
	}
	if len(stats) > 0 {
		b.WriteString("\nDatabases:\n")
		for _, st := range stats {
			fmt.Fprintf(&b, "  [%s] %-20s %-10s %3d  last %s\n",
				st.BackupType, st.DisplayName, st.Status, st.Count,
				FormatAgo(now, st.LastSeen))
		}
	}

	staleHosts, err := store.StaleHosts(staleThreshold)
	if err != nil {
		return "", err
	}
	staleDBs, err := store.StaleDatabases(staleThreshold)
	if err != nil {
		return "", err
	}
	if len(staleHosts) > 0 || len(staleDBs) > 0 {
		b.WriteString("\nStale sources:\n")
		for _, s := range staleHosts {
			fmt.Fprintf(&b, "  host %-16s last %s\n", s.Name, FormatAgo(now, s.LastSeen))
		}
		for _, s := range staleDBs {
			fmt.Fprintf(&b, "  db   %-16s last %s\n", s.Name, FormatAgo(now, s.LastSeen))
		}
	}

	return b.String(), nil
}
