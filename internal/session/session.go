// Package session isolates each player's economy. A Session owns one
// snapshot, one random source and one trade drift, and serializes every
// mutation behind its own mutex.
package session

import (
	"sync"
	"time"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
	"github.com/veryluckygirl-lab/macrogame/internal/entropy"
)

// subscriberBuffer is the per-subscriber channel depth. Slow readers miss
// events rather than stalling a turn.
const subscriberBuffer = 16

// Event is published to subscribers after every turn or reset.
type Event struct {
	Kind      string              `json:"kind"` // snapshot, turn or reset
	SessionID string              `json:"session_id"`
	Report    *economy.TurnReport `json:"report,omitempty"`
	Snapshot  *economy.Snapshot   `json:"snapshot"`
}

// Session is one player's isolated game.
type Session struct {
	ID        string
	Seed      int64
	CreatedAt time.Time

	model *economy.Model

	mu        sync.Mutex
	snap      *economy.Snapshot
	rng       entropy.Source
	drift     *economy.TradeDrift
	updatedAt time.Time

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates a session with a fresh snapshot.
func New(id string, seed int64, model *economy.Model, mode economy.Mode, startYear int) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:        id,
		Seed:      seed,
		CreatedAt: now,
		model:     model,
		updatedAt: now,
		subs:      make(map[int]chan Event),
	}
	s.snap = model.NewSnapshot(mode, startYear)
	s.reseed(0)
	return s
}

// Record is the persisted form of a session.
type Record struct {
	ID        string
	Seed      int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Snapshot  *economy.Snapshot
}

// Restore rebuilds a session from a stored record. The random stream is
// re-derived from the seed and turn, so it does not replay the exact draws
// the session would have seen without the restart.
func Restore(rec Record, model *economy.Model) *Session {
	snap := rec.Snapshot.Clone()
	s := &Session{
		ID:        rec.ID,
		Seed:      rec.Seed,
		CreatedAt: rec.CreatedAt,
		model:     model,
		snap:      snap,
		updatedAt: rec.UpdatedAt,
		subs:      make(map[int]chan Event),
	}
	s.reseed(int64(snap.Turn))
	return s
}

func (s *Session) reseed(offset int64) {
	s.rng = entropy.NewSeeded(s.Seed + offset)
	s.drift = economy.NewTradeDrift(s.Seed, s.model.Params.Drift)
}

// Play submits one decision. On success it returns the turn report and a
// copy of the snapshot after the turn.
func (s *Session) Play(d economy.Decision) (economy.TurnReport, *economy.Snapshot, error) {
	s.mu.Lock()
	report, err := s.model.PlayTurn(s.snap, d, s.rng, s.drift)
	if err != nil {
		s.mu.Unlock()
		return economy.TurnReport{}, nil, err
	}
	s.updatedAt = time.Now().UTC()
	snap := s.snap.Clone()
	// Publishing under mu keeps event order equal to turn order.
	s.publish(Event{Kind: "turn", SessionID: s.ID, Report: &report, Snapshot: snap})
	s.mu.Unlock()
	return report, snap, nil
}

// Reset discards the snapshot and starts over in the same mode. startYear 0
// keeps the session's original start year.
func (s *Session) Reset(startYear int) *economy.Snapshot {
	s.mu.Lock()
	mode := s.snap.Mode
	if startYear == 0 {
		startYear = s.snap.StartYear
	}
	s.snap = s.model.NewSnapshot(mode, startYear)
	s.reseed(0)
	s.updatedAt = time.Now().UTC()
	snap := s.snap.Clone()
	s.publish(Event{Kind: "reset", SessionID: s.ID, Snapshot: snap})
	s.mu.Unlock()
	return snap
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() *economy.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Record returns the persisted form of the session.
func (s *Session) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Record{
		ID:        s.ID,
		Seed:      s.Seed,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
		Snapshot:  s.snap.Clone(),
	}
}

// UpdatedAt returns the time of the last turn or reset.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Subscribe registers a listener for turn and reset events.
func (s *Session) Subscribe() (int, <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeLocked()
}

// SubscribeWithSnapshot registers a listener and returns the state it starts
// from. Every event on the channel follows the returned snapshot.
func (s *Session) SubscribeWithSnapshot() (int, <-chan Event, *economy.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ch := s.subscribeLocked()
	return id, ch, s.snap.Clone()
}

// subscribeLocked requires s.mu. Lock order is mu then subMu.
func (s *Session) subscribeLocked() (int, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Session) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// closeSubscribers drops every listener. Used when the session is deleted.
func (s *Session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Session) publish(e Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
