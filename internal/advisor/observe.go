package advisor

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

// Observation holds everything fetched during one cycle.
type Observation struct {
	Params   economy.Params
	Snapshot *economy.Snapshot
}

// Observer fetches session state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches the model parameters and the session snapshot.
func (o *Observer) Observe(sessionID string) (*Observation, error) {
	obs := &Observation{}
	if err := o.fetchJSON("/api/v1/params", &obs.Params); err != nil {
		return nil, fmt.Errorf("fetch params: %w", err)
	}
	var snap economy.Snapshot
	if err := o.fetchJSON("/api/v1/sessions/"+sessionID, &snap); err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	obs.Snapshot = &snap
	return obs, nil
}

// Ready reports whether the API status endpoint answers 200.
func (o *Observer) Ready() bool {
	resp, err := o.HTTPClient.Get(o.BaseURL + "/api/v1/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
