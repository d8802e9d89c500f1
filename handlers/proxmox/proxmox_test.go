package proxmox

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/handlers/common"
	"github.com/sukhanovai/monitoring-sub002/pkg/email"
	"github.com/sukhanovai/monitoring-sub002/pkg/patterns"
	"github.com/sukhanovai/monitoring-sub002/records"
)

type fakeStore struct {
	records  []records.HostBackup
	failWith error
}

func (f *fakeStore) InsertHostBackup(r records.HostBackup) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	f.records = append(f.records, r)
	return true, nil
}

func newTestHandler(store Store) *Handler {
	return New(store, patterns.NewLibrary(), zap.NewNop())
}

func messageWithSubject(subject string) *email.Message {
	return &email.Message{
		Headers: map[string][]string{
			"subject": {subject},
			"from":    {"vzdump backup tool <root@sr-pve4.localdomain>"},
		},
		ReceivedAt: time.Date(2026, 7, 13, 3, 15, 42, 0, time.UTC),
	}
}

func TestCanHandle(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	cases := []struct {
		subject string
		from    string
		want    bool
	}{
		{"vzdump backup status (sr-pve4): backup successful", "noreply@example.com", true},
		{"Proxmox Backup Server report for pve2: success", "noreply@example.com", true},
		{"nightly backup status", "noreply@example.com", true},
		{"weekly newsletter", "root@sr-pve4.localdomain", true},
		{"weekly newsletter", "marketing@example.com", false},
	}

	for _, c := range cases {
		msg := &email.Message{Headers: map[string][]string{
			"subject": {c.subject},
			"from":    {c.from},
		}}
		if got := h.CanHandle(msg); got != c.want {
			t.Errorf("CanHandle(%q, %q) = %v, want %v", c.subject, c.from, got, c.want)
		}
	}
}

func TestExtractHostAndStatus(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	rec, err := h.Extract(messageWithSubject("vzdump backup status (sr-pve4.geltd.local): backup successful"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if rec.HostName != "sr-pve4" {
		t.Errorf("host = %q, want sr-pve4", rec.HostName)
	}
	if rec.Status != records.StatusSuccess {
		t.Errorf("status = %q, want success", rec.Status)
	}
	if rec.TaskType != "vzdump" {
		t.Errorf("task type = %q", rec.TaskType)
	}
}

func TestExtractFailedStatus(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	rec, err := h.Extract(messageWithSubject("vzdump backup status (pve1): backup failed"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if rec.Status != records.StatusFailed {
		t.Errorf("status = %q, want failed", rec.Status)
	}
}

// Unrecognized status wording is stored verbatim, lowercased. This is
// a deliberate choice over coercing to "unknown": new report formats
// stay visible until a vocabulary mapping is added.
func TestExtractStatusPassthrough(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	rec, err := h.Extract(messageWithSubject("vzdump backup status (pve1): Partially OK"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if rec.Status != "partially ok" {
		t.Errorf("status = %q, want %q", rec.Status, "partially ok")
	}
}

func TestExtractNoHostReturnsNotApplicable(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	_, err := h.Extract(messageWithSubject("backup status report without host"))
	if !errors.Is(err, common.ErrNotApplicable) {
		t.Fatalf("expected ErrNotApplicable, got %v", err)
	}
}

func TestExtractForwardedReport(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	rec, err := h.Extract(messageWithSubject("Fwd: vzdump backup status (sr-pve4.geltd.local): backup successful"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if rec.HostName != "sr-pve4" {
		t.Errorf("host = %q", rec.HostName)
	}
}

func TestExtractBodyEnrichment(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	msg := messageWithSubject("vzdump backup status (sr-pve4.geltd.local): backup successful")
	msg.Parts = []email.Part{{
		ContentType: "text/plain",
		Body: []byte("Backup job finished.\n\n" +
			"Duration: 02:15:30\n" +
			"Total size: 145.8GB\n" +
			"VMs: 12 successful, 0 failed\n"),
	}}

	rec, err := h.Extract(msg)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if rec.Duration != "2h15m30s" {
		t.Errorf("duration = %q, want 2h15m30s", rec.Duration)
	}
	if rec.TotalSize != "145.8GB" {
		t.Errorf("total size = %q", rec.TotalSize)
	}
	if rec.VMCount != 12 || rec.SuccessfulVMs != 12 || rec.FailedVMs != 0 {
		t.Errorf("vm counts = %d/%d/%d", rec.VMCount, rec.SuccessfulVMs, rec.FailedVMs)
	}
	if rec.ErrorMessage != "" {
		t.Errorf("no error message expected, got %q", rec.ErrorMessage)
	}
}

func TestExtractErrorMessage(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	msg := messageWithSubject("vzdump backup status (pve1): backup failed")
	msg.Parts = []email.Part{{
		ContentType: "text/plain",
		Body: []byte("err\n" + // too short to be a diagnostic
			"ERROR: Backup of VM 104 failed - no space left on device\n" +
			"second error line that must not win\n"),
	}}

	rec, err := h.Extract(msg)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	want := "ERROR: Backup of VM 104 failed - no space left on device"
	if rec.ErrorMessage != want {
		t.Errorf("error message = %q, want %q", rec.ErrorMessage, want)
	}
}

func TestHandlePersists(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(store)

	err := h.Handle(messageWithSubject("vzdump backup status (sr-pve4.geltd.local): backup successful"))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(store.records))
	}
	if store.records[0].HostName != "sr-pve4" {
		t.Errorf("persisted host = %q", store.records[0].HostName)
	}
}

func TestHandleWrapsPersistError(t *testing.T) {
	store := &fakeStore{failWith: errors.New("disk full")}
	h := newTestHandler(store)

	err := h.Handle(messageWithSubject("vzdump backup status (sr-pve4): backup successful"))
	var pe *common.PersistError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistError, got %v", err)
	}
	if pe.Table != "proxmox_backups" {
		t.Errorf("table = %q", pe.Table)
	}
}

func TestObservedAtFromDateHeader(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	msg := messageWithSubject("vzdump backup status (sr-pve4): backup successful")
	msg.Headers["date"] = []string{"Mon, 13 Jul 2026 03:15:42 +0700"}

	rec, err := h.Extract(msg)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	want := time.Date(2026, 7, 12, 20, 15, 42, 0, time.UTC)
	if !rec.ReceivedAt.Equal(want) {
		t.Errorf("received_at = %v, want %v", rec.ReceivedAt, want)
	}
}
