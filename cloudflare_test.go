package dnsupdater_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"

	"github.com/cloudflare/cloudflare-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Travis-Britz/dnsupdater"
)

type fakeRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Comment string `json:"comment,omitempty"`
}

// fakeCloudflare serves the handful of API endpoints the updater calls.
type fakeCloudflare struct {
	mu      sync.Mutex
	zones   map[string]string // id -> name
	records []fakeRecord
	deleted []string
	created []fakeRecord
	nextID  int
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"errors":   []any{},
		"messages": []any{},
		"result":   result,
		"result_info": map[string]int{
			"page":        1,
			"per_page":    50,
			"count":       1,
			"total_count": 1,
			"total_pages": 1,
		},
	})
}

func (f *fakeCloudflare) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "zones":
		var zones []map[string]string
		for id, name := range f.zones {
			zones = append(zones, map[string]string{"id": id, "name": name})
		}
		writeResult(w, zones)

	case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "dns_records":
		q := r.URL.Query()
		var out []fakeRecord
		for _, rec := range f.records {
			if q.Get("name") != "" && rec.Name != q.Get("name") {
				continue
			}
			if q.Get("type") != "" && rec.Type != q.Get("type") {
				continue
			}
			out = append(out, rec)
		}
		writeResult(w, out)

	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "dns_records":
		var rec fakeRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nextID++
		rec.ID = fmt.Sprintf("new%d", f.nextID)
		f.records = append(f.records, rec)
		f.created = append(f.created, rec)
		writeResult(w, rec)

	case r.Method == http.MethodDelete && len(parts) == 4 && parts[2] == "dns_records":
		id := parts[3]
		kept := f.records[:0]
		for _, rec := range f.records {
			if rec.ID != id {
				kept = append(kept, rec)
			}
		}
		f.records = kept
		f.deleted = append(f.deleted, id)
		writeResult(w, map[string]string{"id": id})

	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func newCloudflareUpdater(t *testing.T, f *fakeCloudflare, domain string) dnsupdater.Updater {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	u, err := dnsupdater.NewCloudflareUpdater("test-token", domain,
		dnsupdater.CloudflareTTL(120),
		dnsupdater.CloudflareLogger(zaptest.NewLogger(t)),
		dnsupdater.CloudflareAPIOptions(cloudflare.BaseURL(srv.URL), cloudflare.UsingRateLimit(1000)),
	)
	require.NoError(t, err)
	return u
}

func TestCloudflareCreatesRecord(t *testing.T) {
	f := &fakeCloudflare{zones: map[string]string{"z1": "example.com", "z2": "other.com"}}
	u := newCloudflareUpdater(t, f, "home.example.com")

	require.NoError(t, u.UpdateDNSRecord(context.Background(), netip.MustParseAddr("192.0.2.10")))

	require.Len(t, f.created, 1)
	assert.Equal(t, "A", f.created[0].Type)
	assert.Equal(t, "home.example.com", f.created[0].Name)
	assert.Equal(t, "192.0.2.10", f.created[0].Content)
	assert.Equal(t, 120, f.created[0].TTL)
	assert.Equal(t, "managed by dnsupdater", f.created[0].Comment)
	assert.Empty(t, f.deleted)
}

func TestCloudflareReplacesStaleRecords(t *testing.T) {
	f := &fakeCloudflare{
		zones: map[string]string{"z1": "example.com"},
		records: []fakeRecord{
			{ID: "old1", Type: "A", Name: "home.example.com", Content: "192.0.2.1"},
			{ID: "old2", Type: "A", Name: "home.example.com", Content: "192.0.2.2"},
			{ID: "v6", Type: "AAAA", Name: "home.example.com", Content: "2001:db8::1"},
		},
	}
	u := newCloudflareUpdater(t, f, "home.example.com")

	require.NoError(t, u.UpdateDNSRecord(context.Background(), netip.MustParseAddr("192.0.2.10")))

	assert.ElementsMatch(t, []string{"old1", "old2"}, f.deleted)
	require.Len(t, f.created, 1)
	assert.Equal(t, "192.0.2.10", f.created[0].Content)
	assert.Len(t, f.records, 2, "the AAAA record is left alone")
}

func TestCloudflareKeepsMatchingRecord(t *testing.T) {
	f := &fakeCloudflare{
		zones: map[string]string{"z1": "example.com"},
		records: []fakeRecord{
			{ID: "keep", Type: "AAAA", Name: "home.example.com", Content: "2001:db8::10"},
		},
	}
	u := newCloudflareUpdater(t, f, "home.example.com")

	require.NoError(t, u.UpdateDNSRecord(context.Background(), netip.MustParseAddr("2001:db8::10")))
	assert.Empty(t, f.created)
	assert.Empty(t, f.deleted)
}

func TestCloudflareUnknownZone(t *testing.T) {
	f := &fakeCloudflare{zones: map[string]string{"z1": "ample.com"}}
	u := newCloudflareUpdater(t, f, "home.example.com")

	err := u.UpdateDNSRecord(context.Background(), netip.MustParseAddr("192.0.2.10"))
	assert.ErrorContains(t, err, "unable to find a zone")
}

func TestNewCloudflareUpdaterArguments(t *testing.T) {
	_, err := dnsupdater.NewCloudflareUpdater("", "home.example.com")
	assert.Error(t, err)
	_, err = dnsupdater.NewCloudflareUpdater("token", "")
	assert.Error(t, err)
	_, err = dnsupdater.NewCloudflareUpdater("token", "home.example.com", dnsupdater.CloudflareTTL(0))
	assert.Error(t, err)
}
