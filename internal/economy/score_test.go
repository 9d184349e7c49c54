package economy

import (
	"reflect"
	"testing"
)

func TestScore(t *testing.T) {
	m := newTestModel()
	tests := []struct {
		name                  string
		output, potential     float64
		inflation, unemployed float64
		want                  float64
	}{
		{"on target", 1000, 1000, 2, 0, 100},
		{"natural rate", 1000, 1000, 2, 5, 75},
		{"gap both ways", 990, 1000, 2, 0, 90},
		{"above potential", 1010, 1000, 2, 0, 90},
		{"inflation miss", 1000, 1000, 3.5, 0, 85},
		{"deflation miss", 1000, 1000, 0, 0, 80},
		{"floored", 500, 1000, 9, 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Snapshot{Output: tt.output, PotentialOutput: tt.potential, Inflation: tt.inflation, Unemployment: tt.unemployed}
			if got := m.Score(s); !near(got, tt.want) {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateAchievements(t *testing.T) {
	m := newTestModel()
	s := m.NewSnapshot(ModeSandbox, 0)
	s.PotentialOutput = 1150
	s.Output = 1150
	s.Inflation = 2
	s.Unemployment = 1

	score := m.Score(s)
	got := m.EvaluateAchievements(s, score)
	want := []string{BadgeStableEconomy, BadgeFullEmployment, BadgePriceStability, BadgeGrowth, BadgePerfectTurn}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("earned = %v, want %v", got, want)
	}
	if again := m.EvaluateAchievements(s, score); len(again) != 0 {
		t.Fatalf("earned twice: %v", again)
	}
	if len(s.Achievements) != len(want) {
		t.Fatalf("achievements = %v", s.Achievements)
	}
}

func TestEvaluateAchievementsUnstable(t *testing.T) {
	m := newTestModel()
	s := m.NewSnapshot(ModeSandbox, 0)
	s.Output = 800
	s.Inflation = 6
	s.Unemployment = 12

	if got := m.EvaluateAchievements(s, m.Score(s)); len(got) != 0 {
		t.Fatalf("unstable economy earned %v", got)
	}
}
