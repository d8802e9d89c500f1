package zfs

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/handlers/common"
	"github.com/sukhanovai/monitoring-sub002/pkg/email"
	"github.com/sukhanovai/monitoring-sub002/records"
)

type fakeStore struct {
	pools []records.PoolHealth
}

func (f *fakeStore) InsertPoolHealth(r records.PoolHealth) error {
	f.pools = append(f.pools, r)
	return nil
}

func poolMessage(body string) *email.Message {
	return &email.Message{
		Headers: map[string][]string{"subject": {"ZFS pool status on sr-pve4"}},
		Parts: []email.Part{{
			ContentType: "text/plain",
			Body:        []byte(body),
		}},
		ReceivedAt: time.Date(2026, 7, 13, 6, 0, 0, 0, time.UTC),
	}
}

func TestCanHandle(t *testing.T) {
	h := New(&fakeStore{}, zap.NewNop())
	if !h.CanHandle(poolMessage("")) {
		t.Error("pool subject should match")
	}
	msg := &email.Message{Headers: map[string][]string{"subject": {"weekly newsletter"}}}
	if h.CanHandle(msg) {
		t.Error("unrelated subject should not match")
	}
}

func TestExtractSinglePool(t *testing.T) {
	h := New(&fakeStore{}, zap.NewNop())

	body := `  pool: tank
 state: ONLINE
  scan: scrub repaired 0B in 02:11:33 with 0 errors on Sun Jul 12 03:35:34 2026
  size: 10.9T
 alloc: 7.2T
  free: 3.7T
config:

        NAME        STATE     READ WRITE CKSUM
        tank        ONLINE       0     0     0
`
	pools := h.Extract(poolMessage(body))
	if len(pools) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(pools))
	}

	pool := pools[0]
	if pool.PoolName != "tank" {
		t.Errorf("pool = %q", pool.PoolName)
	}
	if pool.Health != "ONLINE" {
		t.Errorf("health = %q", pool.Health)
	}
	if pool.Status != records.StatusSuccess {
		t.Errorf("status = %q", pool.Status)
	}
	if pool.Size != "10.9T" || pool.Used != "7.2T" || pool.Available != "3.7T" {
		t.Errorf("capacity = %q/%q/%q", pool.Size, pool.Used, pool.Available)
	}
	if pool.ScrubDate == "" {
		t.Error("scrub line not captured")
	}
}

func TestExtractMultiplePools(t *testing.T) {
	store := &fakeStore{}
	h := New(store, zap.NewNop())

	body := `pool: tank
state: ONLINE

pool: backup
state: DEGRADED
`
	if err := h.Handle(poolMessage(body)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(store.pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(store.pools))
	}
	if store.pools[1].PoolName != "backup" {
		t.Errorf("second pool = %q", store.pools[1].PoolName)
	}
	if store.pools[1].Status != records.StatusWarning {
		t.Errorf("degraded pool status = %q", store.pools[1].Status)
	}
}

func TestHandleNoPoolsIsNotApplicable(t *testing.T) {
	h := New(&fakeStore{}, zap.NewNop())

	err := h.Handle(poolMessage("disk usage warning, nothing about pools"))
	if !errors.Is(err, common.ErrNotApplicable) {
		t.Fatalf("expected ErrNotApplicable, got %v", err)
	}
}

func TestHealthStatusMapping(t *testing.T) {
	cases := map[string]string{
		"ONLINE":   records.StatusSuccess,
		"DEGRADED": records.StatusWarning,
		"FAULTED":  records.StatusFailed,
		"":         records.StatusUnknown,
		"RESILVER": "resilver",
	}
	for health, want := range cases {
		if got := healthStatus(health); got != want {
			t.Errorf("healthStatus(%q) = %q, want %q", health, got, want)
		}
	}
}
