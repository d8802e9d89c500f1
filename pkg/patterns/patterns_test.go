package patterns

import (
	"testing"

	"github.com/sukhanovai/monitoring-sub002/records"
)

func TestProxmoxSubjectMatch(t *testing.T) {
	lib := NewLibrary()

	m := lib.Match(CategoryProxmoxSubject, "vzdump backup status (sr-pve4.geltd.local): backup successful")
	if m == nil {
		t.Fatal("vzdump subject did not match")
	}
	if m[1] != "sr-pve4.geltd.local" {
		t.Errorf("host capture = %q", m[1])
	}
	if m[2] != "successful" {
		t.Errorf("status capture = %q", m[2])
	}

	m = lib.Match(CategoryProxmoxSubject, "Proxmox Backup Server report for pve2-rubicon: success")
	if m == nil {
		t.Fatal("report-for subject did not match")
	}
	if m[1] != "pve2-rubicon" {
		t.Errorf("host capture = %q", m[1])
	}
}

func TestFirstPatternWins(t *testing.T) {
	lib := NewLibrary()

	// Matches both "sr-bup X dump complete" and the legacy
	// "X_dump complete" form; the first listed pattern is
	// authoritative.
	m := lib.Match(CategoryCompanyDB, "sr-bup acc30_ge dump complete")
	if m == nil {
		t.Fatal("company subject did not match")
	}
	if m[1] != "acc30_ge" {
		t.Errorf("expected first pattern's capture, got %q", m[1])
	}
}

func TestCaseInsensitive(t *testing.T) {
	lib := NewLibrary()
	if !lib.Matches(CategoryBarnaulDB, "Cobian BRN Backup 1c_smb, errors:0") {
		t.Error("barnaul pattern should match regardless of case")
	}
	if !lib.Matches(CategoryYandexDB, "Yandex RUBIKON backup") {
		t.Error("yandex pattern should match regardless of case")
	}
}

func TestDatabaseCaptures(t *testing.T) {
	lib := NewLibrary()

	m := lib.Match(CategoryBarnaulDB, "cobian BRN backup 1c_smb, errors:3")
	if m == nil {
		t.Fatal("barnaul subject did not match")
	}
	if m[1] != "1c_smb" || m[2] != "3" {
		t.Errorf("captures = %q, %q", m[1], m[2])
	}

	m = lib.Match(CategoryClientDB, "kc-1c zup dump complete")
	if m == nil || m[1] != "zup" {
		t.Fatalf("client capture = %v", m)
	}
}

func TestOverride(t *testing.T) {
	lib := NewLibrary()
	if err := lib.Override(CategoryYandexDB, []string{`cloud (\w+) saved`}); err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	if lib.Matches(CategoryYandexDB, "yandex RUBIKON backup") {
		t.Error("override should replace the default list")
	}
	if !lib.Matches(CategoryYandexDB, "cloud RUBIKON saved") {
		t.Error("override pattern not active")
	}

	if err := lib.Override(CategoryYandexDB, []string{`bad(`}); err == nil {
		t.Error("expected error for invalid pattern")
	}
	if err := lib.Override(CategoryYandexDB, nil); err == nil {
		t.Error("expected error for empty pattern list")
	}
}

func TestNoMatchReturnsNil(t *testing.T) {
	lib := NewLibrary()
	if m := lib.Match(CategoryProxmoxSubject, "weekly newsletter"); m != nil {
		t.Errorf("unexpected match: %v", m)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"backup successful": records.StatusSuccess,
		"Backup Failed":     records.StatusFailed,
		"  OK  ":            records.StatusSuccess,
		"error":             records.StatusFailed,
		"warning":           records.StatusWarning,
		"partial":           records.StatusPartial,
	}
	for raw, want := range cases {
		if got := NormalizeStatus(raw); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

// Unrecognized phrases pass through lowercased instead of collapsing
// to "unknown". This is a deliberate behavioral choice: the store
// keeps the verbatim wording of new report formats, and only a fully
// absent status becomes "unknown".
func TestNormalizeStatusPassthrough(t *testing.T) {
	if got := NormalizeStatus("Partially OK"); got != "partially ok" {
		t.Errorf("passthrough = %q, want %q", got, "partially ok")
	}
	if got := NormalizeStatus(""); got != records.StatusUnknown {
		t.Errorf("empty status = %q, want unknown", got)
	}
}
