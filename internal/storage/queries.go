package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// StatusCount is one (host, status) bucket from the daily roll-up.
type StatusCount struct {
	Host   string
	Status string
	Count  int
}

// BackupSummary is one host-level report row in list views.
type BackupSummary struct {
	Host       string
	Status     string
	Duration   string
	TotalSize  string
	ReceivedAt time.Time
}

// DatabaseStat is one aggregate bucket of the per-database roll-up.
type DatabaseStat struct {
	BackupType   string
	DatabaseName string
	DisplayName  string
	Status       string
	Count        int
	LastSeen     time.Time
}

// DatabaseSummary is one database dump row in list views.
type DatabaseSummary struct {
	BackupType   string
	DatabaseName string
	DisplayName  string
	Status       string
	ErrorCount   int
	ReceivedAt   time.Time
}

// StaleSource names a source whose newest report is older than the
// staleness threshold.
type StaleSource struct {
	Name     string
	LastSeen time.Time
}

// CoverageEntry is one known source with its most recent report.
type CoverageEntry struct {
	Kind     string // "host" or a database backup_type
	Name     string
	LastSeen time.Time
}

// TodayStatus returns (host, status, count) buckets for reports whose
// timestamp falls on the current calendar day in loc.
func (s *Store) TodayStatus(loc *time.Location) ([]StatusCount, error) {
	now := time.Now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := s.db.Query(`
		SELECT host_name, backup_status, COUNT(*)
		FROM proxmox_backups
		WHERE received_at >= ? AND received_at < ?
		GROUP BY host_name, backup_status
		ORDER BY host_name`,
		formatTime(dayStart), formatTime(dayEnd))
	if err != nil {
		return nil, fmt.Errorf("today status query failed: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Host, &sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// RecentBackups returns host-level reports from the last N hours,
// newest first, capped at 15 rows.
func (s *Store) RecentBackups(hours int) ([]BackupSummary, error) {
	since := formatTime(time.Now().Add(-time.Duration(hours) * time.Hour))
	return s.backupSummaries(`
		SELECT host_name, backup_status, duration, total_size, received_at
		FROM proxmox_backups
		WHERE received_at >= ?
		ORDER BY received_at DESC
		LIMIT 15`, since)
}

// FailedBackups returns host-level reports with status failed from the
// last N days, newest first.
func (s *Store) FailedBackups(days int) ([]BackupSummary, error) {
	since := formatTime(time.Now().AddDate(0, 0, -days))
	return s.backupSummaries(`
		SELECT host_name, backup_status, duration, total_size, received_at
		FROM proxmox_backups
		WHERE backup_status = 'failed' AND received_at >= ?
		ORDER BY received_at DESC`, since)
}

// HostRecent returns the newest reports for one host, capped at limit.
func (s *Store) HostRecent(host string, limit int) ([]BackupSummary, error) {
	return s.backupSummaries(`
		SELECT host_name, backup_status, duration, total_size, received_at
		FROM proxmox_backups
		WHERE host_name = ?
		ORDER BY received_at DESC
		LIMIT ?`, host, limit)
}

func (s *Store) backupSummaries(query string, args ...any) ([]BackupSummary, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("backup summary query failed: %w", err)
	}
	defer rows.Close()

	var out []BackupSummary
	for rows.Next() {
		var b BackupSummary
		var duration, totalSize sql.NullString
		var receivedAt string
		if err := rows.Scan(&b.Host, &b.Status, &duration, &totalSize, &receivedAt); err != nil {
			return nil, err
		}
		b.Duration = duration.String
		b.TotalSize = totalSize.String
		b.ReceivedAt = parseTime(receivedAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Hosts returns the distinct host names seen so far.
func (s *Store) Hosts() ([]string, error) {
	rows, err := s.db.Query(
		"SELECT DISTINCT host_name FROM proxmox_backups ORDER BY host_name")
	if err != nil {
		return nil, fmt.Errorf("hosts query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, err
		}
		out = append(out, host)
	}
	return out, rows.Err()
}

// DatabaseStats returns the per-database roll-up grouped by backup
// type, database and status.
func (s *Store) DatabaseStats() ([]DatabaseStat, error) {
	rows, err := s.db.Query(`
		SELECT backup_type, database_name, database_display_name, backup_status,
		       COUNT(*), MAX(received_at)
		FROM database_backups
		GROUP BY backup_type, database_name, database_display_name, backup_status
		ORDER BY backup_type, database_name`)
	if err != nil {
		return nil, fmt.Errorf("database stats query failed: %w", err)
	}
	defer rows.Close()

	var out []DatabaseStat
	for rows.Next() {
		var d DatabaseStat
		var display sql.NullString
		var lastSeen string
		if err := rows.Scan(&d.BackupType, &d.DatabaseName, &display, &d.Status, &d.Count, &lastSeen); err != nil {
			return nil, err
		}
		d.DisplayName = display.String
		if d.DisplayName == "" {
			d.DisplayName = d.DatabaseName
		}
		d.LastSeen = parseTime(lastSeen)
		out = append(out, d)
	}
	return out, rows.Err()
}

// DatabaseDetails returns the newest dump rows for one backup type,
// capped at limit.
func (s *Store) DatabaseDetails(backupType string, limit int) ([]DatabaseSummary, error) {
	return s.databaseSummaries(`
		SELECT backup_type, database_name, database_display_name, backup_status, error_count, received_at
		FROM database_backups
		WHERE backup_type = ?
		ORDER BY received_at DESC
		LIMIT ?`, backupType, limit)
}

// DatabaseRecent returns the newest dump rows for one database.
func (s *Store) DatabaseRecent(backupType, databaseName string, limit int) ([]DatabaseSummary, error) {
	return s.databaseSummaries(`
		SELECT backup_type, database_name, database_display_name, backup_status, error_count, received_at
		FROM database_backups
		WHERE backup_type = ? AND database_name = ?
		ORDER BY received_at DESC
		LIMIT ?`, backupType, databaseName, limit)
}

func (s *Store) databaseSummaries(query string, args ...any) ([]DatabaseSummary, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("database summary query failed: %w", err)
	}
	defer rows.Close()

	var out []DatabaseSummary
	for rows.Next() {
		var d DatabaseSummary
		var display sql.NullString
		var receivedAt string
		if err := rows.Scan(&d.BackupType, &d.DatabaseName, &display, &d.Status, &d.ErrorCount, &receivedAt); err != nil {
			return nil, err
		}
		d.DisplayName = display.String
		if d.DisplayName == "" {
			d.DisplayName = d.DatabaseName
		}
		d.ReceivedAt = parseTime(receivedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// StaleHosts returns hosts whose newest report is older than the
// threshold.
func (s *Store) StaleHosts(threshold time.Duration) ([]StaleSource, error) {
	return s.staleSources(`
		SELECT host_name, MAX(received_at) AS last_backup
		FROM proxmox_backups
		GROUP BY host_name
		HAVING last_backup < ?
		ORDER BY last_backup`, threshold)
}

// StaleDatabases returns databases whose newest dump is older than the
// threshold. Names are qualified as type/name.
func (s *Store) StaleDatabases(threshold time.Duration) ([]StaleSource, error) {
	return s.staleSources(`
		SELECT backup_type || '/' || database_name, MAX(received_at) AS last_backup
		FROM database_backups
		GROUP BY backup_type, database_name
		HAVING last_backup < ?
		ORDER BY last_backup`, threshold)
}

func (s *Store) staleSources(query string, threshold time.Duration) ([]StaleSource, error) {
	cutoff := formatTime(time.Now().Add(-threshold))

	rows, err := s.db.Query(query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("stale sources query failed: %w", err)
	}
	defer rows.Close()

	var out []StaleSource
	for rows.Next() {
		var src StaleSource
		var lastSeen string
		if err := rows.Scan(&src.Name, &lastSeen); err != nil {
			return nil, err
		}
		src.LastSeen = parseTime(lastSeen)
		out = append(out, src)
	}
	return out, rows.Err()
}

// Coverage lists every known source with its most recent report,
// hosts first, then databases grouped by backup type.
func (s *Store) Coverage() ([]CoverageEntry, error) {
	rows, err := s.db.Query(`
		SELECT 'host' AS kind, host_name AS name, MAX(received_at) AS last_seen
		FROM proxmox_backups
		GROUP BY host_name
		UNION ALL
		SELECT backup_type AS kind, database_name AS name, MAX(received_at) AS last_seen
		FROM database_backups
		GROUP BY backup_type, database_name
		ORDER BY kind, name`)
	if err != nil {
		return nil, fmt.Errorf("coverage query failed: %w", err)
	}
	defer rows.Close()

	var out []CoverageEntry
	for rows.Next() {
		var e CoverageEntry
		var lastSeen string
		if err := rows.Scan(&e.Kind, &e.Name, &lastSeen); err != nil {
			return nil, err
		}
		e.LastSeen = parseTime(lastSeen)
		out = append(out, e)
	}
	return out, rows.Err()
}
