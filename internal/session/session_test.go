package session

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

func testModel() *economy.Model {
	return economy.NewModel(economy.DefaultParams(), economy.DefaultAnchors())
}

var steady = economy.Decision{G: 455, T: 100, R: 2, TechInvest: 10}

func TestSameSeedSameGame(t *testing.T) {
	m := testModel()
	a := New("a", 11, m, economy.ModeSandbox, 0)
	b := New("b", 11, m, economy.ModeSandbox, 0)

	for i := 0; i < 20; i++ {
		ra, _, err := a.Play(steady)
		if err != nil {
			t.Fatalf("play a: %v", err)
		}
		rb, _, err := b.Play(steady)
		if err != nil {
			t.Fatalf("play b: %v", err)
		}
		if ra.Shock != rb.Shock || ra.Score != rb.Score {
			t.Fatalf("turn %d diverged: %+v vs %+v", i+1, ra, rb)
		}
	}
	if !reflect.DeepEqual(a.Snapshot(), b.Snapshot()) {
		t.Fatalf("snapshots diverged")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := testModel()
	a := New("a", 1, m, economy.ModeSandbox, 0)
	b := New("b", 1, m, economy.ModeSandbox, 0)

	if _, _, err := a.Play(economy.Decision{}); err != nil {
		t.Fatalf("play: %v", err)
	}
	if got := b.Snapshot(); got.Turn != 1 || len(got.History) != 0 {
		t.Fatalf("playing a changed b: %+v", got)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	m := testModel()
	s := New("s", 3, m, economy.ModeCampaign, 0)
	fresh := s.Snapshot()

	var first []economy.Shock
	for i := 0; i < 4; i++ {
		rep, _, err := s.Play(steady)
		if err != nil {
			t.Fatalf("play: %v", err)
		}
		first = append(first, rep.Shock)
	}

	r1 := s.Reset(0)
	r2 := s.Reset(0)
	if !reflect.DeepEqual(r1, r2) || !reflect.DeepEqual(r1, fresh) {
		t.Fatalf("reset not idempotent:\n%+v\n%+v\n%+v", r1, r2, fresh)
	}

	// A reset also rewinds the random stream.
	for i := 0; i < 4; i++ {
		rep, _, err := s.Play(steady)
		if err != nil {
			t.Fatalf("play: %v", err)
		}
		if rep.Shock != first[i] {
			t.Fatalf("turn %d shock %+v, want %+v", i+1, rep.Shock, first[i])
		}
	}
}

func TestResetStartYear(t *testing.T) {
	s := New("s", 3, testModel(), economy.ModeCampaign, 0)
	snap := s.Reset(2020)
	if snap.Year != 2020 || snap.Mode != economy.ModeCampaign || snap.Output != 1163 {
		t.Fatalf("reset snapshot = %+v", snap)
	}
	if again := s.Reset(0); again.Year != 2020 {
		t.Fatalf("reset 0 should keep start year, got %d", again.Year)
	}
}

func TestPlayAfterCompletion(t *testing.T) {
	s := New("s", 3, testModel(), economy.ModeCampaign, 2024)
	_, snap, err := s.Play(steady)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !snap.CampaignComplete {
		t.Fatalf("single-year campaign should complete")
	}
	if _, _, err := s.Play(steady); !errors.Is(err, economy.ErrCampaignComplete) {
		t.Fatalf("err = %v, want ErrCampaignComplete", err)
	}
	if got := s.Snapshot(); len(got.History) != 1 {
		t.Fatalf("history = %d after rejected turn", len(got.History))
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New("s", 3, testModel(), economy.ModeSandbox, 0)
	_, snap, err := s.Play(steady)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	snap.History[0].Output = -5
	snap.Output = -5
	if got := s.Snapshot(); got.Output == -5 || got.History[0].Output == -5 {
		t.Fatalf("returned snapshot aliases session state")
	}
}

func TestConcurrentPlay(t *testing.T) {
	s := New("s", 9, testModel(), economy.ModeSandbox, 0)

	const players = 32
	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.Play(steady); err != nil {
				t.Errorf("play: %v", err)
			}
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if len(snap.History) != players || snap.Turn != players+1 {
		t.Fatalf("history %d turn %d, want %d and %d", len(snap.History), snap.Turn, players, players+1)
	}
	for i, h := range snap.History {
		if h.Turn != i+1 {
			t.Fatalf("history[%d].Turn = %d", i, h.Turn)
		}
	}
}

func TestSubscribe(t *testing.T) {
	s := New("s", 3, testModel(), economy.ModeSandbox, 0)
	id, ch := s.Subscribe()

	rep, _, err := s.Play(steady)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	select {
	case e := <-ch:
		if e.Kind != "turn" || e.SessionID != "s" || e.Report == nil || e.Report.Turn != rep.Turn {
			t.Fatalf("event = %+v", e)
		}
		if len(e.Snapshot.History) != 1 {
			t.Fatalf("event snapshot history = %d", len(e.Snapshot.History))
		}
	case <-time.After(time.Second):
		t.Fatalf("no turn event")
	}

	s.Reset(0)
	select {
	case e := <-ch:
		if e.Kind != "reset" || e.Report != nil {
			t.Fatalf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatalf("no reset event")
	}

	s.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after unsubscribe")
	}
	s.Unsubscribe(id) // second call is a no-op
}

func TestEventsFollowTurnOrder(t *testing.T) {
	s := New("s", 5, testModel(), economy.ModeSandbox, 0)
	_, ch := s.Subscribe()

	// Stay within the subscriber buffer so no event is dropped.
	const players = subscriberBuffer
	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.Play(steady); err != nil {
				t.Errorf("play: %v", err)
			}
		}()
	}
	wg.Wait()

	last := 0
	for i := 0; i < players; i++ {
		select {
		case e := <-ch:
			if e.Report.Turn <= last {
				t.Fatalf("event %d turn %d after turn %d", i, e.Report.Turn, last)
			}
			if e.Snapshot.Turn != e.Report.Turn+1 {
				t.Fatalf("event %d snapshot turn %d for report turn %d", i, e.Snapshot.Turn, e.Report.Turn)
			}
			last = e.Report.Turn
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d events", i, players)
		}
	}
}

func TestSubscribeWithSnapshot(t *testing.T) {
	s := New("s", 5, testModel(), economy.ModeSandbox, 0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 8; i++ {
			if _, _, err := s.Play(steady); err != nil {
				t.Errorf("play: %v", err)
			}
		}
	}()
	id, ch, snap := s.SubscribeWithSnapshot()
	wg.Wait()
	s.Unsubscribe(id)

	next := snap.Turn
	for e := range ch {
		if e.Report.Turn != next {
			t.Fatalf("event turn %d, want %d after snapshot turn %d", e.Report.Turn, next, snap.Turn)
		}
		next++
	}
	if next != s.Snapshot().Turn {
		t.Fatalf("events ended at turn %d, session at %d", next, s.Snapshot().Turn)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New("s", 3, testModel(), economy.ModeSandbox, 0)
	_, _ = s.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			if _, _, err := s.Play(steady); err != nil {
				t.Errorf("play: %v", err)
			}
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("unread subscriber stalled play")
	}
}

func TestRecordRestore(t *testing.T) {
	m := testModel()
	s := New("s", 21, m, economy.ModeCampaign, 0)
	for i := 0; i < 3; i++ {
		if _, _, err := s.Play(steady); err != nil {
			t.Fatalf("play: %v", err)
		}
	}

	rec := s.Record()
	r := Restore(rec, m)
	if r.ID != "s" || r.Seed != 21 || !r.CreatedAt.Equal(s.CreatedAt) || !r.UpdatedAt().Equal(s.UpdatedAt()) {
		t.Fatalf("restored metadata = %+v", r)
	}
	if !reflect.DeepEqual(r.Snapshot(), s.Snapshot()) {
		t.Fatalf("restored snapshot differs")
	}

	// Mutating the record does not reach into the restored session.
	rec.Snapshot.Output = -1
	if r.Snapshot().Output == -1 {
		t.Fatalf("restore kept a reference to the record")
	}

	if _, _, err := r.Play(steady); err != nil {
		t.Fatalf("play restored: %v", err)
	}
	if got := r.Snapshot(); got.Turn != 5 || got.Year != 2019 {
		t.Fatalf("restored turn %d year %d", got.Turn, got.Year)
	}
}
