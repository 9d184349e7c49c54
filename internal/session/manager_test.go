package session

import (
	"errors"
	"testing"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

func TestManagerCreateGetDelete(t *testing.T) {
	next := int64(100)
	mgr := NewManager(testModel(), func() (int64, error) {
		next++
		return next, nil
	})

	s, err := mgr.Create(economy.ModeCampaign, 0, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ID == "" || s.Seed != 101 {
		t.Fatalf("session id %q seed %d", s.ID, s.Seed)
	}
	if got := s.Snapshot(); got.Mode != economy.ModeCampaign || got.Year != 2015 {
		t.Fatalf("snapshot = %+v", got)
	}

	seed := int64(7)
	fixed, err := mgr.Create(economy.ModeSandbox, 0, &seed)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fixed.Seed != 7 || fixed.ID == s.ID {
		t.Fatalf("fixed seed session = %s/%d", fixed.ID, fixed.Seed)
	}
	if mgr.Len() != 2 {
		t.Fatalf("len = %d", mgr.Len())
	}

	got, err := mgr.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("get = %v, %v", got, err)
	}
	if _, err := mgr.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("get missing err = %v", err)
	}

	_, ch := s.Subscribe()
	if err := mgr.Delete(s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("subscriber not closed on delete")
	}
	if err := mgr.Delete(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	if mgr.Len() != 1 {
		t.Fatalf("len after delete = %d", mgr.Len())
	}
}

func TestManagerSeedError(t *testing.T) {
	boom := errors.New("no entropy")
	mgr := NewManager(testModel(), func() (int64, error) { return 0, boom })
	if _, err := mgr.Create(economy.ModeSandbox, 0, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if mgr.Len() != 0 {
		t.Fatalf("failed create left a session")
	}
}

func TestManagerListOrder(t *testing.T) {
	mgr := NewManager(testModel(), nil)
	m := mgr.Model()
	a := New("b", 1, m, economy.ModeSandbox, 0)
	b := New("a", 1, m, economy.ModeSandbox, 0)
	b.CreatedAt = a.CreatedAt
	c := New("c", 1, m, economy.ModeSandbox, 0)
	c.CreatedAt = a.CreatedAt.Add(-1)

	mgr.Add(a)
	mgr.Add(b)
	mgr.Add(c)

	list := mgr.List()
	ids := []string{list[0].ID, list[1].ID, list[2].ID}
	if ids[0] != "c" || ids[1] != "a" || ids[2] != "b" {
		t.Fatalf("order = %v, want [c a b]", ids)
	}
}
