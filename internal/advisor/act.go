package advisor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

// ErrComplete is returned when the server rejects a decision because the
// campaign has ended.
var ErrComplete = errors.New("campaign already complete")

// TurnResult is the response from POST /api/v1/sessions/{id}/decisions.
type TurnResult struct {
	Report    economy.TurnReport `json:"report"`
	Defaulted bool               `json:"defaulted"`
}

// Actor submits decisions and creates sessions via the API.
type Actor struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL.
func NewActor(baseURL string) *Actor {
	return &Actor{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateSession starts a new session and returns its id.
func (a *Actor) CreateSession(mode economy.Mode, startYear int) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]any{"mode": mode, "start_year": startYear}
	if err := a.postJSON("/api/v1/sessions", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Act submits one decision for the session.
func (a *Actor) Act(sessionID string, d economy.Decision) (*TurnResult, error) {
	var result TurnResult
	if err := a.postJSON("/api/v1/sessions/"+sessionID+"/decisions", d, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *Actor) postJSON(path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	resp, err := a.HTTPClient.Post(a.BaseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrComplete
	case resp.StatusCode/100 != 2:
		return fmt.Errorf("POST %s returned %d: %s", path, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
