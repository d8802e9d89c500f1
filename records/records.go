// Package records defines the persisted report types produced by the
// email handlers.
package records

import "time"

// Normalized backup outcome labels. Raw status phrases that do not map
// to one of these pass through lowercased, so columns may also carry
// free-text values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusWarning = "warning"
	StatusPartial = "partial"
	StatusUnknown = "unknown"
)

// HostBackup is one observed outcome of a host-level backup job,
// typically a vzdump run on a virtualization host. Identity is
// (HostName, ReceivedAt).
type HostBackup struct {
	HostName      string
	HostIP        string
	Status        string
	TaskType      string
	VMCount       int
	SuccessfulVMs int
	FailedVMs     int
	StartTime     string
	EndTime       string
	Duration      string
	TotalSize     string
	ErrorMessage  string
	EmailSubject  string
	RawSubject    string
	ReceivedAt    time.Time
}

// DatabaseBackup is one observed outcome of a database dump job.
// HostName is a synthetic backup-agent name for sources that do not
// report from a monitored host. Identity is
// (HostName, DatabaseName, ReceivedAt).
type DatabaseBackup struct {
	HostName     string
	DatabaseName string
	DisplayName  string
	Status       string
	BackupType   string
	TaskType     string
	ErrorCount   int
	EmailSubject string
	ReceivedAt   time.Time
}

// PoolHealth is one storage-pool health observation extracted from a
// zpool status report.
type PoolHealth struct {
	PoolName   string
	Status     string
	Health     string
	Size       string
	Used       string
	Available  string
	ScrubDate  string
	ReportedAt time.Time
}

// InventoryReport is the audit row written for each saved inventory
// attachment.
type InventoryReport struct {
	Filename     string
	ContentType  string
	SizeBytes    int
	SavedPath    string
	EmailSubject string
	ReceivedAt   time.Time
}
