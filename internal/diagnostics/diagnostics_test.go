package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kmansel/mobilelink/internal/mobilelink"
)

type stubSource struct {
	account     string
	tanks       map[int64]mobilelink.PropaneTank
	lastRefresh time.Time
	lastErr     error
}

func (s *stubSource) Account() string                         { return s.account }
func (s *stubSource) Tanks() map[int64]mobilelink.PropaneTank { return s.tanks }
func (s *stubSource) LastRefresh() (time.Time, error)         { return s.lastRefresh, s.lastErr }

func fixtureSource() *stubSource {
	level := 61.0
	return &stubSource{
		account: "user@example.com",
		tanks: map[int64]mobilelink.PropaneTank{
			7: {ApparatusID: 7, Name: "Main Tank", FuelLevelPercent: &level},
		},
		lastRefresh: time.Date(2026, 8, 20, 11, 4, 0, 0, time.UTC),
	}
}

func TestBuildRedactsSecrets(t *testing.T) {
	snapshot := Build(fixtureSource())

	if snapshot.Password != "***REDACTED***" {
		t.Fatalf("password must be redacted, got %q", snapshot.Password)
	}
	if snapshot.Account != "user@example.com" {
		t.Fatalf("unexpected account: %q", snapshot.Account)
	}
	if snapshot.LastRefresh != "2026-08-20T11:04:00Z" {
		t.Fatalf("unexpected last refresh: %q", snapshot.LastRefresh)
	}
	tank, ok := snapshot.Tanks["7"]
	if !ok {
		t.Fatalf("expected tank 7, got %v", snapshot.Tanks)
	}
	if tank.Name != "Main Tank" {
		t.Fatalf("unexpected tank: %+v", tank)
	}
}

func TestBuildIncludesLastError(t *testing.T) {
	source := fixtureSource()
	source.lastErr = errors.New("boom")

	if got := Build(source).LastError; got != "boom" {
		t.Fatalf("unexpected last error: %q", got)
	}
}

func TestHandler(t *testing.T) {
	recorder := httptest.NewRecorder()
	Handler(fixtureSource())(recorder, httptest.NewRequest("GET", "/diagnostics", nil))

	if recorder.Code != 200 {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	var snapshots []Snapshot
	if err := json.Unmarshal(recorder.Body.Bytes(), &snapshots); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].Account != "user@example.com" {
		t.Fatalf("unexpected snapshots: %+v", snapshots)
	}
	if strings.Contains(recorder.Body.String(), "hunter2") {
		t.Fatalf("response leaked a secret")
	}
}

type memoryBlobStore struct {
	saved map[string][]byte
}

func (m *memoryBlobStore) Save(_ context.Context, key string, data []byte) error {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[key] = data
	return nil
}

func TestArchiverWritesRedactedSnapshot(t *testing.T) {
	store := &memoryBlobStore{}
	source := fixtureSource()
	archiver := NewArchiver(store, "", source)
	archiver.now = func() time.Time { return time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC) }

	if err := archiver.PublishTanks(context.Background(), source.account, source.tanks); err != nil {
		t.Fatalf("PublishTanks: %v", err)
	}

	key := "mobilelink/diagnostics/user@example.com/2026-08-24T09-00-00Z.json"
	data, ok := store.saved[key]
	if !ok {
		t.Fatalf("missing archive object, keys: %v", keys(store))
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if snapshot.Password != "***REDACTED***" {
		t.Fatalf("archive leaked a secret: %+v", snapshot)
	}
}

func keys(store *memoryBlobStore) []string {
	out := make([]string, 0, len(store.saved))
	for key := range store.saved {
		out = append(out, key)
	}
	return out
}
