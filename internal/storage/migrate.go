package storage

import "fmt"

// MigrateLegacySchema upgrades a pre-uniqueness database in place:
// a new table with the UNIQUE constraint is filled via INSERT OR
// IGNORE (collapsing historical duplicates), then swapped in by
// rename. Existing rows are preserved; readers only see the swap.
func (s *Store) MigrateLegacySchema() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS proxmox_backups_new (
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
		`INSERT OR IGNORE INTO proxmox_backups_new
			(host_name, host_ip, backup_status, task_type, vm_count, successful_vms, failed_vms,
			 start_time, end_time, duration, total_size, error_message, email_subject, raw_subject, received_at)
			SELECT host_name, host_ip, backup_status, task_type, vm_count, successful_vms, failed_vms,
			       start_time, end_time, duration, total_size, error_message, email_subject, raw_subject, received_at
			FROM proxmox_backups`,
		`DROP TABLE IF EXISTS proxmox_backups_old`,
		`ALTER TABLE proxmox_backups RENAME TO proxmox_backups_old`,
		`ALTER TABLE proxmox_backups_new RENAME TO proxmox_backups`,
		`CREATE INDEX IF NOT EXISTS idx_proxmox_backups_host_date
			ON proxmox_backups(host_name, received_at)`,
		`CREATE INDEX IF NOT EXISTS idx_proxmox_backups_status
			ON proxmox_backups(backup_status, received_at)`,

		`CREATE TABLE IF NOT EXISTS database_backups_new (
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
		`INSERT OR IGNORE INTO database_backups_new
			(host_name, database_name, database_display_name, backup_status, backup_type, task_type,
			 error_count, email_subject, received_at)
			SELECT host_name, database_name, database_display_name, backup_status, backup_type, task_type,
			       error_count, email_subject, received_at
			FROM database_backups`,
		`DROP TABLE IF EXISTS database_backups_old`,
		`ALTER TABLE database_backups RENAME TO database_backups_old`,
		`ALTER TABLE database_backups_new RENAME TO database_backups`,
		`CREATE INDEX IF NOT EXISTS idx_database_backups_type_date
			ON database_backups(backup_type, received_at)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration step failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
