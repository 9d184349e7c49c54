package persistence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

// JournalEntry is one line of the turn journal.
type JournalEntry struct {
	Time            time.Time           `json:"time"`
	SessionID       string              `json:"session_id"`
	Kind            string              `json:"kind"` // create, turn or reset
	Report          *economy.TurnReport `json:"report,omitempty"`
	Output          float64             `json:"output"`
	PotentialOutput float64             `json:"potential_output"`
	Inflation       float64             `json:"inflation"`
	Unemployment    float64             `json:"unemployment"`
}

// Journal appends JSONL entries to zstd-compressed files rotated daily.
// Each Journal writes its own files, so a frame left unfinished by a crash
// is never appended to.
type Journal struct {
	dir    string
	prefix string
	run    string
	now    func() time.Time

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

// NewJournal creates a journal writing under dir.
func NewJournal(dir, prefix string) *Journal {
	return &Journal{
		dir:    dir,
		prefix: prefix,
		run:    fmt.Sprintf("%d-%s", os.Getpid(), uuid.NewString()[:8]),
		now:    time.Now,
	}
}

// WriteEvent records a turn or reset together with the resulting state.
func (j *Journal) WriteEvent(sessionID, kind string, rep *economy.TurnReport, snap *economy.Snapshot) error {
	e := JournalEntry{
		Time:      j.now().UTC(),
		SessionID: sessionID,
		Kind:      kind,
		Report:    rep,
	}
	if snap != nil {
		e.Output = snap.Output
		e.PotentialOutput = snap.PotentialOutput
		e.Inflation = snap.Inflation
		e.Unemployment = snap.Unemployment
	}
	return j.Write(e)
}

// Write appends one entry and flushes it through the encoder.
func (j *Journal) Write(e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	day := e.Time.Format("2006-01-02")
	if day != j.curDay {
		if err := j.rotateLocked(day); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := j.w.Flush(); err != nil {
		return err
	}
	return j.enc.Flush()
}

// Close flushes and closes the current file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

// Path returns the file an entry for day would be written to.
func (j *Journal) Path(day string) string {
	return filepath.Join(j.dir, fmt.Sprintf("%s-%s-%s.jsonl.zst", j.prefix, day, j.run))
}

func (j *Journal) rotateLocked(day string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.Path(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 32*1024)
	j.curDay = day
	return nil
}

func (j *Journal) closeLocked() error {
	var errs []error
	if j.w != nil {
		errs = append(errs, j.w.Flush())
	}
	if j.enc != nil {
		errs = append(errs, j.enc.Close())
		j.enc = nil
	}
	if j.f != nil {
		errs = append(errs, j.f.Close())
		j.f = nil
	}
	j.w = nil
	j.curDay = ""
	return errors.Join(errs...)
}

// ReadJournal decodes every entry in a journal file.
func ReadJournal(path string) ([]JournalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []JournalEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var e JournalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("journal %s: %w", path, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
