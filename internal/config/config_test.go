package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.PollIntervalSec)
	assert.Equal(t, 90, cfg.RetentionDays)
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 90*24*time.Hour, cfg.Retention())
	assert.NotEmpty(t, cfg.DatabasePath)
	assert.Equal(t, "INBOX", cfg.IMAP.Folder)
	assert.Equal(t, "1C SMB Барнаул", cfg.Displays("barnaul")["1c_smb"])
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database_path: /var/lib/monitor/backups.db
poll_interval_sec: 60
retention_days: 30
timezone: Asia/Barnaul
display_names:
  company:
    wms: Warehouse
patterns:
  database/yandex:
    - 'cloud (\w+) saved'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/monitor/backups.db", cfg.DatabasePath)
	assert.Equal(t, 60, cfg.PollIntervalSec)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, "Asia/Barnaul", cfg.Timezone)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Barnaul", loc.String())

	// Explicit display names replace the defaults wholesale.
	assert.Equal(t, "Warehouse", cfg.Displays("company")["wms"])
	assert.Empty(t, cfg.Displays("barnaul"))

	require.Len(t, cfg.Patterns["database/yandex"], 1)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestBadTimezone(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus"}
	cfg.applyDefaults()
	_, err := cfg.Location()
	assert.Error(t, err)
}
