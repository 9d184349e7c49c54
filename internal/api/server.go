// Package api provides the HTTP API for playing sessions.
// GET endpoints are public. Decisions are rate limited per IP.
// Admin endpoints require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veryluckygirl-lab/macrogame/internal/advisor"
	"github.com/veryluckygirl-lab/macrogame/internal/economy"
	"github.com/veryluckygirl-lab/macrogame/internal/llm"
	"github.com/veryluckygirl-lab/macrogame/internal/persistence"
	"github.com/veryluckygirl-lab/macrogame/internal/session"
)

const (
	maxSSEConns     = 32
	maxRequestBody  = 64 << 10
	defaultTurnRows = 50
	maxTurnRows     = 500
)

// Server serves sessions over HTTP.
type Server struct {
	Sessions     *session.Manager
	DB           *persistence.DB      // nil when ephemeral
	Journal      *persistence.Journal // nil when ephemeral
	Port         int
	AdminKey     string   // Bearer token for admin endpoints. Empty = admin disabled.
	CORSOrigins  []string // extra allowed origins
	DecisionRate int      // decisions per IP per hour, 0 = unlimited
	Policy       advisor.Policy
	LLM          *llm.Client // nil = template bulletins

	// Active SSE connection count (atomic).
	sseConns int32

	// Bulletins cached per session until the session changes. bulletinMu
	// guards the map only; generation runs unlocked.
	bulletinMu  sync.Mutex
	bulletins   map[string]cachedBulletin
	genBulletin func(context.Context, *llm.Client, *llm.BulletinData) *llm.Bulletin

	// Limiters are built once and stopped by Shutdown.
	limitersOnce    sync.Once
	decisionLimiter *RateLimiter
	bulletinLimiter *RateLimiter

	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	s.limitersOnce.Do(func() {
		s.decisionLimiter = NewRateLimiter(s.DecisionRate, time.Hour)
		s.bulletinLimiter = NewRateLimiter(30, time.Hour)
	})
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/params", s.handleParams)
	mux.HandleFunc("/api/v1/anchors", s.handleAnchors)
	mux.HandleFunc("/api/v1/sessions", s.handleSessions)
	mux.HandleFunc("/api/v1/sessions/", s.handleSessionRoutes(s.decisionLimiter, s.bulletinLimiter))

	// Admin endpoints (require bearer token).
	mux.HandleFunc("/api/v1/admin/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr,
		"admin_auth", s.AdminKey != "",
		"persistent", s.DB != nil,
		"decision_rate", s.DecisionRate,
	)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.decisionLimiter.Stop()
	s.bulletinLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(extra []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range extra {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on mutating requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no MACRO_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	model := s.Sessions.Model()
	first, _ := model.Anchors.First()
	writeJSON(w, map[string]any{
		"name":         "macrogame",
		"sessions":     s.Sessions.Len(),
		"anchors":      model.Anchors.Len(),
		"first_anchor": first,
		"persistent":   s.DB != nil,
		"journal":      s.Journal != nil,
		"sse_clients":  s.sseClients(),
	})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sessions.Model().Params)
}

func (s *Server) handleAnchors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sessions.Model().Anchors.All())
}

type sessionSummary struct {
	ID               string       `json:"id"`
	Mode             economy.Mode `json:"mode"`
	Year             int          `json:"year"`
	Turn             int          `json:"turn"`
	CumulativeScore  float64      `json:"cumulative_score"`
	CampaignComplete bool         `json:"campaign_complete"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSessions(w, r)
	case http.MethodPost:
		s.handleCreateSession(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list := s.Sessions.List()
	result := make([]sessionSummary, 0, len(list))
	for _, sess := range list {
		snap := sess.Snapshot()
		result = append(result, sessionSummary{
			ID:               sess.ID,
			Mode:             snap.Mode,
			Year:             snap.Year,
			Turn:             snap.Turn,
			CumulativeScore:  snap.CumulativeScore,
			CampaignComplete: snap.CampaignComplete,
			CreatedAt:        sess.CreatedAt,
			UpdatedAt:        sess.UpdatedAt(),
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode      string `json:"mode"`
		StartYear int    `json:"start_year"`
		Seed      *int64 `json:"seed"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	sess, err := s.Sessions.Create(economy.ParseMode(req.Mode), req.StartYear, req.Seed)
	if err != nil {
		slog.Error("create session failed", "error", err)
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}
	snap := sess.Snapshot()
	s.persistSession(sess)
	s.journal(sess.ID, "create", nil, snap)

	writeJSONStatus(w, http.StatusCreated, map[string]any{
		"id":       sess.ID,
		"seed":     sess.Seed,
		"snapshot": snap,
	})
}

// handleSessionRoutes dispatches /api/v1/sessions/{id}[/action].
func (s *Server) handleSessionRoutes(decisionLimiter, bulletinLimiter *RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/"), "/")
		parts := strings.Split(path, "/")
		if parts[0] == "" || len(parts) > 2 {
			http.NotFound(w, r)
			return
		}

		sess, err := s.Sessions.Get(parts[0])
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		action := ""
		if len(parts) == 2 {
			action = parts[1]
		}

		switch action {
		case "":
			switch r.Method {
			case http.MethodGet:
				writeJSON(w, sess.Snapshot())
			case http.MethodDelete:
				s.adminOnly(func(w http.ResponseWriter, r *http.Request) {
					s.handleDeleteSession(w, r, sess)
				})(w, r)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
		case "decisions":
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			RateLimitMiddleware(decisionLimiter, func(w http.ResponseWriter, r *http.Request) {
				s.handleDecision(w, r, sess)
			})(w, r)
		case "reset":
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			s.handleReset(w, r, sess)
		case "history":
			writeJSON(w, sess.Snapshot().Series())
		case "chart":
			s.handleChart(w, r, sess)
		case "advice":
			s.handleAdvice(w, r, sess)
		case "turns":
			s.handleTurns(w, r, sess)
		case "bulletin":
			RateLimitMiddleware(bulletinLimiter, func(w http.ResponseWriter, r *http.Request) {
				s.handleBulletin(w, r, sess)
			})(w, r)
		case "stream":
			s.handleStream(w, r, sess)
		case "ws":
			s.handleWS(w, r, sess)
		default:
			http.NotFound(w, r)
		}
	}
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	d, defaulted := parseDecision(r)
	if defaulted {
		slog.Debug("malformed decision, playing zeros", "session", sess.ID)
	}

	report, snap, err := s.playTurn(sess, d)
	switch {
	case errors.Is(err, economy.ErrCampaignComplete):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{
		"report":    report,
		"defaulted": defaulted,
		"snapshot":  snap,
	})
}

// playTurn plays one decision and persists the result. Storage failures are
// logged and do not fail the turn.
func (s *Server) playTurn(sess *session.Session, d economy.Decision) (economy.TurnReport, *economy.Snapshot, error) {
	report, snap, err := sess.Play(d)
	if err != nil {
		return report, nil, err
	}

	if s.DB != nil {
		if err := s.DB.RecordTurn(sess.ID, report, snap); err != nil {
			slog.Error("record turn failed", "session", sess.ID, "turn", report.Turn, "error", err)
		}
	}
	s.persistSession(sess)
	s.journal(sess.ID, "turn", &report, snap)

	slog.Debug("turn played", "session", sess.ID, "turn", report.Turn, "year", report.Year,
		"shock", report.Shock.Kind, "score", report.Score)
	return report, snap, nil
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var startYear int
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			StartYear int `json:"start_year"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		startYear = req.StartYear
	} else if raw := r.FormValue("start_year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid start_year", http.StatusBadRequest)
			return
		}
		startYear = y
	}

	snap := sess.Reset(startYear)
	s.persistSession(sess)
	s.journal(sess.ID, "reset", nil, snap)
	slog.Info("session reset", "session", sess.ID, "year", snap.Year)

	writeJSON(w, snap)
}

// chartTrace is one line of a time-series chart.
type chartTrace struct {
	Name string    `json:"name"`
	X    []int     `json:"x"`
	Y    []float64 `json:"y"`
	Mode string    `json:"mode"`
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	series := sess.Snapshot().Series()
	line := func(name string, y []float64) chartTrace {
		return chartTrace{Name: name, X: series.Turns, Y: y, Mode: "lines+markers"}
	}

	writeJSON(w, map[string]any{
		"traces": []chartTrace{
			line("GDP", series.Output),
			line("Potential GDP", series.PotentialOutput),
			line("Inflation (%)", series.Inflation),
			line("Unemployment (%)", series.Unemployment),
		},
		"layout": map[string]any{
			"title":  "Economic trends",
			"xaxis":  map[string]string{"title": "Turn"},
			"yaxis":  map[string]string{"title": "Value"},
			"years":  series.Years,
			"scores": series.Score,
		},
	})
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	pol := s.Policy
	if pol == (advisor.Policy{}) {
		pol = advisor.DefaultPolicy()
	}
	snap := sess.Snapshot()
	advice := advisor.Decide(s.Sessions.Model().Params, pol, snap)

	writeJSON(w, map[string]any{
		"turn":              snap.Turn,
		"year":              snap.Year,
		"campaign_complete": snap.CampaignComplete,
		"advice":            advice,
	})
}

type cachedBulletin struct {
	updatedAt time.Time
	bulletin  *llm.Bulletin
}

func (s *Server) handleBulletin(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	rec := sess.Record()

	s.bulletinMu.Lock()
	c, ok := s.bulletins[sess.ID]
	s.bulletinMu.Unlock()
	if ok && c.updatedAt.Equal(rec.UpdatedAt) {
		writeJSON(w, c.bulletin)
		return
	}

	gen := s.genBulletin
	if gen == nil {
		gen = llm.GenerateBulletin
	}
	b := gen(r.Context(), s.LLM, llm.FromSnapshot(s.Sessions.Model().Params, rec.Snapshot))

	s.bulletinMu.Lock()
	if s.bulletins == nil {
		s.bulletins = make(map[string]cachedBulletin)
	}
	// A slower request for an older state must not replace a newer entry.
	if cur, ok := s.bulletins[sess.ID]; !ok || !cur.updatedAt.After(rec.UpdatedAt) {
		s.bulletins[sess.ID] = cachedBulletin{updatedAt: rec.UpdatedAt, bulletin: b}
	}
	s.bulletinMu.Unlock()
	writeJSON(w, b)
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	limit := defaultTurnRows
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxTurnRows)
	}

	rows, err := s.DB.RecentTurns(sess.ID, limit)
	if err != nil {
		slog.Error("load turns failed", "session", sess.ID, "error", err)
		http.Error(w, "could not load turns", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.TurnRow{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := s.Sessions.Delete(sess.ID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if s.DB != nil {
		if err := s.DB.DeleteSession(sess.ID); err != nil {
			slog.Error("delete session failed", "session", sess.ID, "error", err)
		}
	}
	s.bulletinMu.Lock()
	delete(s.bulletins, sess.ID)
	s.bulletinMu.Unlock()
	writeJSON(w, map[string]any{"deleted": sess.ID})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	list := s.Sessions.List()
	if err := s.DB.SaveAll(list); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if err := s.DB.SaveMeta("last_snapshot", now); err != nil {
		slog.Warn("save snapshot time failed", "error", err)
	}

	writeJSON(w, map[string]any{
		"sessions": len(list),
		"saved_at": now,
		"message":  "snapshot saved",
	})
}

// persistSession upserts the session row, logging failures.
func (s *Server) persistSession(sess *session.Session) {
	if s.DB == nil {
		return
	}
	if err := s.DB.SaveSession(sess.Record()); err != nil {
		slog.Error("save session failed", "session", sess.ID, "error", err)
	}
}

// journal appends an event to the compressed journal, logging failures.
func (s *Server) journal(sessionID, kind string, rep *economy.TurnReport, snap *economy.Snapshot) {
	if s.Journal == nil {
		return
	}
	if err := s.Journal.WriteEvent(sessionID, kind, rep, snap); err != nil {
		slog.Error("journal write failed", "session", sessionID, "kind", kind, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
