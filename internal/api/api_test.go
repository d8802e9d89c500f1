package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/internal/storage"
	"github.com/sukhanovai/monitoring-sub002/records"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "backups.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(New(store, time.UTC, zap.NewNop()).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestTodayEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	_, err := store.InsertHostBackup(records.HostBackup{
		HostName: "sr-pve4", Status: "success", ReceivedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	var counts []storage.StatusCount
	getJSON(t, srv.URL+"/api/today", &counts)
	require.Len(t, counts, 1)
	assert.Equal(t, "sr-pve4", counts[0].Host)
	assert.Equal(t, 1, counts[0].Count)
}

func TestHostsAndRecentEndpoints(t *testing.T) {
	srv, store := newTestServer(t)

	now := time.Now().UTC()
	for _, host := range []string{"pve1", "sr-pve4"} {
		_, err := store.InsertHostBackup(records.HostBackup{
			HostName: host, Status: "success", ReceivedAt: now,
		})
		require.NoError(t, err)
	}

	var hosts []string
	getJSON(t, srv.URL+"/api/hosts", &hosts)
	assert.Equal(t, []string{"pve1", "sr-pve4"}, hosts)

	var recent []storage.BackupSummary
	getJSON(t, srv.URL+"/api/recent?hours=2", &recent)
	assert.Len(t, recent, 2)

	var one []storage.BackupSummary
	getJSON(t, srv.URL+"/api/hosts/pve1", &one)
	require.Len(t, one, 1)
	assert.Equal(t, "pve1", one[0].Host)
}

func TestStaleEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	_, err := store.InsertHostBackup(records.HostBackup{
		HostName: "pve1", Status: "success",
		ReceivedAt: time.Now().UTC().Add(-72 * time.Hour),
	})
	require.NoError(t, err)

	var payload struct {
		Hosts     []storage.StaleSource `json:"hosts"`
		Databases []storage.StaleSource `json:"databases"`
	}
	getJSON(t, srv.URL+"/api/stale", &payload)
	require.Len(t, payload.Hosts, 1)
	assert.Equal(t, "pve1", payload.Hosts[0].Name)
	assert.Empty(t, payload.Databases)
}

func TestDatabasesEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	_, err := store.InsertDatabaseBackup(records.DatabaseBackup{
		HostName: "kc-1c", DatabaseName: "zup", Status: "success",
		BackupType: "client", ReceivedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	var stats []storage.DatabaseStat
	getJSON(t, srv.URL+"/api/databases", &stats)
	require.Len(t, stats, 1)
	assert.Equal(t, "client", stats[0].BackupType)

	var details []storage.DatabaseSummary
	getJSON(t, srv.URL+"/api/databases/client", &details)
	assert.Len(t, details, 1)
}
