// Package config loads the monitor configuration from a YAML file,
// filling defaults for anything absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// IMAPConfig holds the optional IMAP ingestion account.
type IMAPConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Folder   string `yaml:"folder"`
	Days     int    `yaml:"days"`
}

// Config is the full monitor configuration.
type Config struct {
	DatabasePath    string `yaml:"database_path"`
	MaildirPath     string `yaml:"maildir_path"`
	AttachmentsDir  string `yaml:"attachments_dir"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
	RetentionDays   int    `yaml:"retention_days"`
	Timezone        string `yaml:"timezone"`
	LogFile         string `yaml:"log_file"`
	HTTPAddr        string `yaml:"http_addr"`

	IMAP IMAPConfig `yaml:"imap"`

	// DisplayNames maps backup type -> database name -> label.
	DisplayNames map[string]map[string]string `yaml:"display_names"`

	// Patterns overrides whole pattern categories; the declared
	// order within a list is the match priority.
	Patterns map[string][]string `yaml:"patterns"`
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".backup-monitor", "config.yaml")
}

// Load reads the config file at path. A missing file is not an error:
// the defaults are a complete working configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	home, _ := os.UserHomeDir()
	baseDir := filepath.Join(home, ".backup-monitor")

	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(baseDir, "backups.db")
	}
	if c.MaildirPath == "" {
		c.MaildirPath = filepath.Join(home, "Maildir")
	}
	if c.AttachmentsDir == "" {
		c.AttachmentsDir = filepath.Join(baseDir, "attachments")
	}
	if c.PollIntervalSec <= 0 {
		c.PollIntervalSec = 30
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 90
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = "127.0.0.1:8720"
	}
	if c.IMAP.Port == 0 {
		c.IMAP.Port = 993
	}
	if c.IMAP.Folder == "" {
		c.IMAP.Folder = "INBOX"
	}
	if c.IMAP.Days <= 0 {
		c.IMAP.Days = 3
	}
	if c.DisplayNames == nil {
		c.DisplayNames = defaultDisplayNames()
	}
}

// defaultDisplayNames seeds the known database labels.
func defaultDisplayNames() map[string]map[string]string {
	return map[string]map[string]string{
		"company": {
			"acc30_ge": "ACC30 ГЕ",
			"acc30_np": "ACC30 НП",
			"hrm31_ge": "HRM31 ГЕ",
			"wms":      "WMS система",
		},
		"barnaul": {
			"1c_smb":  "1C SMB Барнаул",
			"doc_nas": "Документы NAS",
		},
		"client": {
			"unf": "УНФ Клиент",
			"zup": "ЗУП Клиент",
		},
		"yandex": {
			"RUBIKON": "Рубикон",
			"KC":      "Клиентский центр",
		},
	}
}

// PollInterval returns the maildir poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// Retention returns the report retention horizon.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("bad timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Displays returns the display-name map for one backup type.
func (c *Config) Displays(backupType string) map[string]string {
	return c.DisplayNames[backupType]
}
