// Package diagnostics renders redacted operator-facing snapshots of the
// poller's state. Secrets never leave the process: passwords and cookie
// headers are masked before a snapshot is serialized anywhere.
package diagnostics

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kmansel/mobilelink/internal/mobilelink"
)

const redacted = "***REDACTED***"

// Source is the slice of a coordinator the snapshot needs.
type Source interface {
	Account() string
	Tanks() map[int64]mobilelink.PropaneTank
	LastRefresh() (time.Time, error)
}

// Snapshot is one account's redacted diagnostic dump.
type Snapshot struct {
	Account     string                            `json:"account"`
	Password    string                            `json:"password"`
	LastRefresh string                            `json:"last_refresh,omitempty"`
	LastError   string                            `json:"last_error,omitempty"`
	Tanks       map[string]mobilelink.PropaneTank `json:"tanks"`
}

// Build assembles a snapshot from a coordinator. The password field is
// always the redaction marker, mirroring what operators expect from the
// dashboard's own diagnostics exports.
func Build(source Source) Snapshot {
	snapshot := Snapshot{
		Account:  source.Account(),
		Password: redacted,
		Tanks:    make(map[string]mobilelink.PropaneTank),
	}

	lastRefresh, lastErr := source.LastRefresh()
	if !lastRefresh.IsZero() {
		snapshot.LastRefresh = lastRefresh.UTC().Format(time.RFC3339)
	}
	if lastErr != nil {
		snapshot.LastError = lastErr.Error()
	}

	for id, tank := range source.Tanks() {
		snapshot.Tanks[strconv.FormatInt(id, 10)] = tank
	}
	return snapshot
}

// Handler serves the snapshots for all accounts as JSON.
func Handler(sources ...Source) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snapshots := make([]Snapshot, 0, len(sources))
		for _, source := range sources {
			snapshots = append(snapshots, Build(source))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshots); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
