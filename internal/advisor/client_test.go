package advisor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

func TestObserve(t *testing.T) {
	params := economy.DefaultParams()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/params":
			json.NewEncoder(w).Encode(params)
		case "/api/v1/sessions/s1":
			json.NewEncoder(w).Encode(economy.Snapshot{Turn: 3, Year: 2017, Output: 1010})
		case "/api/v1/status":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	o := NewObserver(srv.URL)
	assert.True(t, o.Ready())

	obs, err := o.Observe("s1")
	require.NoError(t, err)
	assert.Equal(t, params.MPC, obs.Params.MPC)
	assert.Equal(t, 3, obs.Snapshot.Turn)
	assert.Equal(t, 1010.0, obs.Snapshot.Output)

	_, err = o.Observe("missing")
	assert.ErrorContains(t, err, "fetch session")
}

func TestReadyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	assert.False(t, NewObserver(url).Ready())
}

func TestAct(t *testing.T) {
	var got economy.Decision
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/sessions":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"id": "new"})
		case "/api/v1/sessions/s1/decisions":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(TurnResult{Report: economy.TurnReport{Turn: 1, Score: 75}})
		case "/api/v1/sessions/done/decisions":
			http.Error(w, "campaign already complete", http.StatusConflict)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	a := NewActor(srv.URL)
	id, err := a.CreateSession(economy.ModeCampaign, 0)
	require.NoError(t, err)
	assert.Equal(t, "new", id)

	d := economy.Decision{G: 1, T: 2, R: 3}
	res, err := a.Act("s1", d)
	require.NoError(t, err)
	assert.Equal(t, d, got)
	assert.Equal(t, 75.0, res.Report.Score)

	_, err = a.Act("done", d)
	assert.ErrorIs(t, err, ErrComplete)

	_, err = a.Act("other", d)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrComplete)
	assert.ErrorContains(t, err, "500")
}
