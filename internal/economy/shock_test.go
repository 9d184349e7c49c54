package economy

import (
	"testing"

	"github.com/veryluckygirl-lab/macrogame/internal/entropy"
)

func TestApplyShockKinds(t *testing.T) {
	// Under uniform weights u*5 selects none, boom, crisis, energy, tech.
	// The second draw of 0.5 lands every magnitude on its range midpoint.
	tests := []struct {
		name      string
		draw      float64
		kind      ShockKind
		magnitude float64
		check     func(s *Snapshot) bool
	}{
		{"none", 0.1, ShockNone, 0, func(s *Snapshot) bool { return s.Output == 670 }},
		{"boom", 0.3, ShockBoom, 35, func(s *Snapshot) bool { return near(s.Output, 705) }},
		{"crisis", 0.5, ShockCrisis, 50, func(s *Snapshot) bool { return near(s.Output, 620) }},
		{"energy", 0.7, ShockEnergy, 2, func(s *Snapshot) bool { return near(s.Inflation, 2) }},
		{"tech", 0.9, ShockTech, 20, func(s *Snapshot) bool { return near(s.PotentialOutput, 1020) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel()
			s := m.NewSnapshot(ModeSandbox, 0)
			if err := m.Advance(s, Decision{}); err != nil {
				t.Fatalf("advance: %v", err)
			}

			sh := ApplyShock(s, entropy.NewFixed(tt.draw, 0.5), m.Params.Shocks)
			if sh.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", sh.Kind, tt.kind)
			}
			if !near(sh.Magnitude, tt.magnitude) {
				t.Fatalf("magnitude = %v, want %v", sh.Magnitude, tt.magnitude)
			}
			if !tt.check(s) {
				t.Fatalf("state after %s: %+v", tt.kind, s)
			}

			label := "1: " + tt.kind.Label()
			if got := s.HasAchievement(label); got != (tt.kind != ShockNone) {
				t.Fatalf("achievement %q recorded = %v", label, got)
			}
		})
	}
}

func TestApplyShockCrisisFloor(t *testing.T) {
	m := newTestModel()
	s := m.NewSnapshot(ModeSandbox, 0)
	s.Output = 10

	sh := ApplyShock(s, entropy.NewFixed(0.5, 1), m.Params.Shocks)
	if sh.Kind != ShockCrisis {
		t.Fatalf("kind = %s, want crisis", sh.Kind)
	}
	if s.Output != 0 {
		t.Fatalf("output = %v, want 0", s.Output)
	}
}

func TestApplyShockDisabled(t *testing.T) {
	m := newTestModel()

	s := m.NewSnapshot(ModeSandbox, 0)
	if sh := ApplyShock(s, nil, m.Params.Shocks); sh.Kind != ShockNone {
		t.Fatalf("nil rng gave %s", sh.Kind)
	}

	s.CampaignComplete = true
	if sh := ApplyShock(s, entropy.NewFixed(0.3, 0.5), m.Params.Shocks); sh.Kind != ShockNone {
		t.Fatalf("complete campaign gave %s", sh.Kind)
	}
	if s.Output != 1000 {
		t.Fatalf("complete campaign was shocked")
	}
}

func TestApplyShockSameYearOnce(t *testing.T) {
	m := newTestModel()
	s := m.NewSnapshot(ModeSandbox, 0)
	for i := 0; i < 3; i++ {
		ApplyShock(s, entropy.NewFixed(0.3, 0.5), m.Params.Shocks)
	}
	if n := count(s.Achievements, "1: Economic boom"); n != 1 {
		t.Fatalf("boom recorded %d times", n)
	}
}

func TestDrawKindWeights(t *testing.T) {
	tests := []struct {
		name string
		u    float64
		w    ShockWeights
		want ShockKind
	}{
		{"only crisis", 0.0, ShockWeights{Crisis: 1}, ShockCrisis},
		{"skips zero weights", 0.99, ShockWeights{None: 1, Tech: 1}, ShockTech},
		{"heavy none", 0.89, ShockWeights{None: 9, Boom: 1}, ShockNone},
		{"heavy none tail", 0.91, ShockWeights{None: 9, Boom: 1}, ShockBoom},
		{"u of one", 1.0, ShockWeights{None: 1, Energy: 1}, ShockEnergy},
		{"no weights", 0.5, ShockWeights{}, ShockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := drawKind(tt.u, tt.w); got != tt.want {
				t.Errorf("drawKind(%v) = %s, want %s", tt.u, got, tt.want)
			}
		})
	}
}

func TestShockFrequencies(t *testing.T) {
	m := newTestModel()
	rng := entropy.NewSeeded(2024)
	counts := map[ShockKind]int{}
	const n = 10000
	for i := 0; i < n; i++ {
		s := m.NewSnapshot(ModeSandbox, 0)
		counts[ApplyShock(s, rng, m.Params.Shocks).Kind]++
	}
	for _, k := range []ShockKind{ShockNone, ShockBoom, ShockCrisis, ShockEnergy, ShockTech} {
		if c := counts[k]; c < n/5-400 || c > n/5+400 {
			t.Errorf("%s drawn %d times out of %d", k, c, n)
		}
	}
}
