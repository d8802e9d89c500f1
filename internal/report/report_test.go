package report

import (
	"testing"
	"time"

	"github.com/sukhanovai/monitoring-sub002/internal/storage"
)

var now = time.Date(2026, 7, 13, 12, 0, 0, 0, time.UTC)

func host(status string, age time.Duration) storage.BackupSummary {
	return storage.BackupSummary{Status: status, ReceivedAt: now.Add(-age)}
}

func db(status string, errorCount int, age time.Duration) storage.DatabaseSummary {
	return storage.DatabaseSummary{Status: status, ErrorCount: errorCount, ReceivedAt: now.Add(-age)}
}

func TestHostState(t *testing.T) {
	cases := []struct {
		name   string
		recent []storage.BackupSummary
		want   string
	}{
		{"no reports", nil, StateStale},
		{"last failed", []storage.BackupSummary{host("failed", time.Hour)}, StateFailed},
		{"failure in history", []storage.BackupSummary{
			host("success", time.Hour), host("failed", 10 * time.Hour),
		}, StateRecentFailed},
		{"fresh success", []storage.BackupSummary{host("success", time.Hour)}, StateSuccess},
		{"old success", []storage.BackupSummary{host("success", 30 * time.Hour)}, StateOld},
		{"stale success", []storage.BackupSummary{host("success", 72 * time.Hour)}, StateStale},
		{"failure beyond window ignored", []storage.BackupSummary{
			host("success", time.Hour), host("success", 2 * time.Hour),
			host("success", 3 * time.Hour), host("failed", 4 * time.Hour),
		}, StateSuccess},
	}

	for _, c := range cases {
		if got := HostState(c.recent, now); got != c.want {
			t.Errorf("%s: HostState = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestDatabaseState(t *testing.T) {
	cases := []struct {
		name   string
		recent []storage.DatabaseSummary
		want   string
	}{
		{"no dumps", nil, StateStale},
		{"last failed", []storage.DatabaseSummary{db("failed", 0, time.Hour)}, StateFailed},
		{"errors in last dump", []storage.DatabaseSummary{db("success", 2, time.Hour)}, StateWarning},
		{"failure in history", []storage.DatabaseSummary{
			db("success", 0, time.Hour), db("failed", 0, 5 * time.Hour),
		}, StateRecentFailed},
		{"errors in history", []storage.DatabaseSummary{
			db("success", 0, time.Hour), db("success", 1, 5 * time.Hour),
		}, StateRecentErrors},
		{"fresh clean dump", []storage.DatabaseSummary{db("success", 0, time.Hour)}, StateSuccess},
		{"stale clean dump", []storage.DatabaseSummary{db("success", 0, 72 * time.Hour)}, StateStale},
	}

	for _, c := range cases {
		if got := DatabaseState(c.recent, now); got != c.want {
			t.Errorf("%s: DatabaseState = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestFormatAgo(t *testing.T) {
	if got := FormatAgo(now, now.Add(-3*time.Hour)); got != "3h ago" {
		t.Errorf("FormatAgo = %q", got)
	}
	if got := FormatAgo(now, now.Add(-50*time.Hour)); got != "2d 2h ago" {
		t.Errorf("FormatAgo = %q", got)
	}
	if got := FormatAgo(now, time.Time{}); got != "never" {
		t.Errorf("FormatAgo zero = %q", got)
	}
}
