// Package storage persists backup reports to a local SQLite database
// and serves the read-side queries consumed by the bot collaborator.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sukhanovai/monitoring-sub002/records"
)

// timeLayout is the stored timestamp format. All timestamps are UTC.
const timeLayout = "2006-01-02 15:04:05"

// Store wraps the SQLite database. All writes must come from a single
// goroutine; the routing loop owns the Store for the life of the
// process. Readers may use a second Store on the same file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the report database at dbPath and
// runs migrations.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; the embedded engine serializes the rest.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DefaultDBPath returns the default database location.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "backups.db"
	}
	return filepath.Join(home, ".backup-monitor", "backups.db")
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS proxmox_backups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			host_name TEXT NOT NULL,
			host_ip TEXT,
			backup_status TEXT NOT NULL,
			task_type TEXT,
			vm_count INTEGER DEFAULT 0,
			successful_vms INTEGER DEFAULT 0,
			failed_vms INTEGER DEFAULT 0,
			start_time TEXT,
			end_time TEXT,
			duration TEXT,
			total_size TEXT,
			error_message TEXT,
			email_subject TEXT,
			raw_subject TEXT,
			received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(host_name, received_at)
		)`,
		`CREATE TABLE IF NOT EXISTS database_backups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			host_name TEXT NOT NULL,
			database_name TEXT NOT NULL,
			database_display_name TEXT,
			backup_status TEXT NOT NULL,
			backup_type TEXT,
			task_type TEXT,
			error_count INTEGER DEFAULT 0,
			email_subject TEXT,
			received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(host_name, database_name, received_at)
		)`,
		`CREATE TABLE IF NOT EXISTS zfs_pools (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pool_name TEXT NOT NULL,
			status TEXT NOT NULL,
			health TEXT,
			size TEXT,
			used TEXT,
			available TEXT,
			scrub_date TEXT,
			reported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL,
			content_type TEXT,
			size_bytes INTEGER DEFAULT 0,
			saved_path TEXT,
			email_subject TEXT,
			received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS backup_patterns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL,
			pattern TEXT NOT NULL,
			priority INTEGER DEFAULT 0,
			UNIQUE(category, pattern)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proxmox_backups_host_date
			ON proxmox_backups(host_name, received_at)`,
		`CREATE INDEX IF NOT EXISTS idx_proxmox_backups_status
			ON proxmox_backups(backup_status, received_at)`,
		`CREATE INDEX IF NOT EXISTS idx_database_backups_type_date
			ON database_backups(backup_type, received_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// InsertHostBackup writes one host-level report row. Returns false
// when a row with the same (host_name, received_at) already exists;
// duplicate delivery is not an error.
func (s *Store) InsertHostBackup(r records.HostBackup) (bool, error) {
	result, err := s.db.Exec(`
		INSERT OR IGNORE INTO proxmox_backups
		(host_name, host_ip, backup_status, task_type, vm_count, successful_vms, failed_vms,
		 start_time, end_time, duration, total_size, error_message, email_subject, raw_subject, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.HostName, r.HostIP, r.Status, r.TaskType, r.VMCount, r.SuccessfulVMs, r.FailedVMs,
		r.StartTime, r.EndTime, r.Duration, r.TotalSize, r.ErrorMessage,
		r.EmailSubject, r.RawSubject, formatTime(r.ReceivedAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert host backup: %w", err)
	}
	return rowsInserted(result)
}

// InsertDatabaseBackup writes one database dump report row, keyed by
// (host_name, database_name, received_at).
func (s *Store) InsertDatabaseBackup(r records.DatabaseBackup) (bool, error) {
	result, err := s.db.Exec(`
		INSERT OR IGNORE INTO database_backups
		(host_name, database_name, database_display_name, backup_status, backup_type, task_type,
		 error_count, email_subject, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.HostName, r.DatabaseName, r.DisplayName, r.Status, r.BackupType, r.TaskType,
		r.ErrorCount, r.EmailSubject, formatTime(r.ReceivedAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert database backup: %w", err)
	}
	return rowsInserted(result)
}

// InsertPoolHealth writes one storage-pool observation.
func (s *Store) InsertPoolHealth(r records.PoolHealth) error {
	_, err := s.db.Exec(`
		INSERT INTO zfs_pools (pool_name, status, health, size, used, available, scrub_date, reported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PoolName, r.Status, r.Health, r.Size, r.Used, r.Available, r.ScrubDate,
		formatTime(r.ReportedAt))
	if err != nil {
		return fmt.Errorf("failed to insert pool health: %w", err)
	}
	return nil
}

// InsertInventoryReport writes the audit row for one saved attachment.
func (s *Store) InsertInventoryReport(r records.InventoryReport) error {
	_, err := s.db.Exec(`
		INSERT INTO inventory_reports (filename, content_type, size_bytes, saved_path, email_subject, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Filename, r.ContentType, r.SizeBytes, r.SavedPath, r.EmailSubject,
		formatTime(r.ReceivedAt))
	if err != nil {
		return fmt.Errorf("failed to insert inventory report: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes report rows older than the retention horizon.
// Returns the total number of rows removed.
func (s *Store) PurgeOlderThan(retention time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-retention))

	var total int64
	for _, table := range []string{"proxmox_backups", "database_backups", "inventory_reports"} {
		result, err := s.db.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE received_at < ?", table), cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to purge %s: %w", table, err)
		}
		n, _ := result.RowsAffected()
		total += n
	}

	result, err := s.db.Exec("DELETE FROM zfs_pools WHERE reported_at < ?", cutoff)
	if err != nil {
		return total, fmt.Errorf("failed to purge zfs_pools: %w", err)
	}
	n, _ := result.RowsAffected()
	total += n

	return total, nil
}

// GetSetting reads one settings value. The second return is false when
// the key is absent.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value.String, value.Valid, nil
}

// SetSetting writes one settings value, replacing any existing one.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// SeedDefaults inserts the default settings and pattern rows, leaving
// existing values untouched.
func (s *Store) SeedDefaults(patternDefaults map[string][]string) error {
	defaults := map[string]string{
		"max_backup_age_days": "90",
		"poll_interval_sec":   "30",
	}
	for key, value := range defaults {
		if _, err := s.db.Exec(
			"INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", key, err)
		}
	}

	for category, exprs := range patternDefaults {
		for i, expr := range exprs {
			if _, err := s.db.Exec(
				"INSERT OR IGNORE INTO backup_patterns (category, pattern, priority) VALUES (?, ?, ?)",
				category, expr, i); err != nil {
				return fmt.Errorf("failed to seed pattern for %s: %w", category, err)
			}
		}
	}

	return nil
}

// LoadPatterns reads the persisted pattern lists, ordered by declared
// priority within each category. An empty map means nothing was
// seeded yet; callers fall back to the built-in defaults.
func (s *Store) LoadPatterns() (map[string][]string, error) {
	rows, err := s.db.Query(
		"SELECT category, pattern FROM backup_patterns ORDER BY category, priority, id")
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var category, pattern string
		if err := rows.Scan(&category, &pattern); err != nil {
			return nil, err
		}
		out[category] = append(out[category], pattern)
	}
	return out, rows.Err()
}

func rowsInserted(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
