// Package persistence provides best-effort SQLite storage for sessions and
// their turn logs, plus a compressed JSONL turn journal.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
	"github.com/veryluckygirl-lab/macrogame/internal/session"
)

// DB wraps a SQLite connection for session persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		mode TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		snapshot_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		turn INTEGER NOT NULL,
		year INTEGER NOT NULL,
		g REAL NOT NULL,
		t REAL NOT NULL,
		r REAL NOT NULL,
		tech_invest REAL NOT NULL,
		export_boost REAL NOT NULL,
		shock TEXT NOT NULL,
		shock_magnitude REAL NOT NULL,
		score REAL NOT NULL,
		output REAL NOT NULL,
		potential_output REAL NOT NULL,
		inflation REAL NOT NULL,
		unemployment REAL NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, turn);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type sessionRow struct {
	ID           string `db:"id"`
	Seed         int64  `db:"seed"`
	Mode         string `db:"mode"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
	SnapshotJSON string `db:"snapshot_json"`
}

// SaveSession upserts one session.
func (db *DB) SaveSession(rec session.Record) error {
	snapJSON, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", rec.ID, err)
	}
	_, err = db.conn.NamedExec(`INSERT INTO sessions
		(id, seed, mode, created_at, updated_at, snapshot_json)
		VALUES (:id, :seed, :mode, :created_at, :updated_at, :snapshot_json)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			snapshot_json = excluded.snapshot_json`,
		sessionRow{
			ID:           rec.ID,
			Seed:         rec.Seed,
			Mode:         string(rec.Snapshot.Mode),
			CreatedAt:    rec.CreatedAt.Format(time.RFC3339Nano),
			UpdatedAt:    rec.UpdatedAt.Format(time.RFC3339Nano),
			SnapshotJSON: string(snapJSON),
		})
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

// SaveAll writes every session in one transaction.
func (db *DB) SaveAll(sessions []*session.Session) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT INTO sessions
		(id, seed, mode, created_at, updated_at, snapshot_json)
		VALUES (:id, :seed, :mode, :created_at, :updated_at, :snapshot_json)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			snapshot_json = excluded.snapshot_json`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range sessions {
		rec := s.Record()
		snapJSON, err := json.Marshal(rec.Snapshot)
		if err != nil {
			return fmt.Errorf("marshal snapshot %s: %w", rec.ID, err)
		}
		if _, err := stmt.Exec(sessionRow{
			ID:           rec.ID,
			Seed:         rec.Seed,
			Mode:         string(rec.Snapshot.Mode),
			CreatedAt:    rec.CreatedAt.Format(time.RFC3339Nano),
			UpdatedAt:    rec.UpdatedAt.Format(time.RFC3339Nano),
			SnapshotJSON: string(snapJSON),
		}); err != nil {
			return fmt.Errorf("save session %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("sessions saved", "count", len(sessions))
	return nil
}

// LoadSessions returns every stored session record, oldest first.
func (db *DB) LoadSessions() ([]session.Record, error) {
	var rows []sessionRow
	if err := db.conn.Select(&rows, "SELECT id, seed, mode, created_at, updated_at, snapshot_json FROM sessions ORDER BY created_at"); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	out := make([]session.Record, 0, len(rows))
	for _, row := range rows {
		var snap economy.Snapshot
		if err := json.Unmarshal([]byte(row.SnapshotJSON), &snap); err != nil {
			slog.Warn("skipping unreadable session", "session", row.ID, "error", err)
			continue
		}
		created, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
		updated, _ := time.Parse(time.RFC3339Nano, row.UpdatedAt)
		out = append(out, session.Record{
			ID:        row.ID,
			Seed:      row.Seed,
			CreatedAt: created,
			UpdatedAt: updated,
			Snapshot:  &snap,
		})
	}
	return out, nil
}

// DeleteSession removes a session and its turn log.
func (db *DB) DeleteSession(id string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM turns WHERE session_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// TurnRow is one logged turn.
type TurnRow struct {
	SessionID       string  `db:"session_id" json:"session_id"`
	Turn            int     `db:"turn" json:"turn"`
	Year            int     `db:"year" json:"year"`
	G               float64 `db:"g" json:"g"`
	T               float64 `db:"t" json:"t"`
	R               float64 `db:"r" json:"r"`
	TechInvest      float64 `db:"tech_invest" json:"tech_invest"`
	ExportBoost     float64 `db:"export_boost" json:"export_boost"`
	Shock           string  `db:"shock" json:"shock"`
	ShockMagnitude  float64 `db:"shock_magnitude" json:"shock_magnitude"`
	Score           float64 `db:"score" json:"score"`
	Output          float64 `db:"output" json:"output"`
	PotentialOutput float64 `db:"potential_output" json:"potential_output"`
	Inflation       float64 `db:"inflation" json:"inflation"`
	Unemployment    float64 `db:"unemployment" json:"unemployment"`
	RecordedAt      string  `db:"recorded_at" json:"recorded_at"`
}

// RecordTurn appends a played turn. snap is the state after the turn.
func (db *DB) RecordTurn(sessionID string, rep economy.TurnReport, snap *economy.Snapshot) error {
	if len(snap.History) == 0 {
		return fmt.Errorf("record turn %s: empty history", sessionID)
	}
	last := snap.History[len(snap.History)-1]
	_, err := db.conn.NamedExec(`INSERT INTO turns
		(session_id, turn, year, g, t, r, tech_invest, export_boost, shock, shock_magnitude,
		 score, output, potential_output, inflation, unemployment, recorded_at)
		VALUES (:session_id, :turn, :year, :g, :t, :r, :tech_invest, :export_boost, :shock, :shock_magnitude,
		 :score, :output, :potential_output, :inflation, :unemployment, :recorded_at)`,
		TurnRow{
			SessionID:       sessionID,
			Turn:            rep.Turn,
			Year:            rep.Year,
			G:               rep.Decision.G,
			T:               rep.Decision.T,
			R:               rep.Decision.R,
			TechInvest:      rep.Decision.TechInvest,
			ExportBoost:     rep.Decision.ExportBoost,
			Shock:           string(rep.Shock.Kind),
			ShockMagnitude:  rep.Shock.Magnitude,
			Score:           rep.Score,
			Output:          last.Output,
			PotentialOutput: last.PotentialOutput,
			Inflation:       last.Inflation,
			Unemployment:    last.Unemployment,
			RecordedAt:      time.Now().UTC().Format(time.RFC3339),
		})
	if err != nil {
		return fmt.Errorf("record turn %s/%d: %w", sessionID, rep.Turn, err)
	}
	return nil
}

// RecentTurns returns the most recent turns of a session, newest first.
func (db *DB) RecentTurns(sessionID string, limit int) ([]TurnRow, error) {
	var rows []TurnRow
	err := db.conn.Select(&rows,
		`SELECT session_id, turn, year, g, t, r, tech_invest, export_boost, shock, shock_magnitude,
			score, output, potential_output, inflation, unemployment, recorded_at
		FROM turns WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	return rows, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
