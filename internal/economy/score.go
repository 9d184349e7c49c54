package economy

import "math"

// Badges awarded by EvaluateAchievements.
const (
	BadgeStableEconomy  = "stable-economy"
	BadgeFullEmployment = "full-employment"
	BadgePriceStability = "price-stability"
	BadgeGrowth         = "growth"
	BadgePerfectTurn    = "perfect-turn"
)

// Score rates the current state: 100 minus the output gap, the weighted
// inflation miss and the weighted unemployment rate, floored at zero.
func (m *Model) Score(s *Snapshot) float64 {
	p := m.Params
	raw := 100 -
		math.Abs(s.OutputGap()) -
		math.Abs(s.Inflation-p.TargetInflation)*p.InflationPenalty -
		s.Unemployment*p.UnemploymentPenalty
	return math.Max(0, raw)
}

// EvaluateAchievements inserts every badge whose condition holds and returns
// the ones that were new. Badges already earned are never duplicated.
func (m *Model) EvaluateAchievements(s *Snapshot, score float64) []string {
	b := m.Params.Badges
	var earned []string
	award := func(badge string, cond bool) {
		if cond && s.addAchievement(badge) {
			earned = append(earned, badge)
		}
	}

	award(BadgeStableEconomy,
		math.Abs(s.OutputGap()) < b.StableGap &&
			s.Inflation < b.StableInflation &&
			s.Unemployment < b.StableUnemployment)
	award(BadgeFullEmployment, s.Unemployment <= s.NaturalUnemployment)
	award(BadgePriceStability, math.Abs(s.Inflation-m.Params.TargetInflation) < b.PriceBand)
	award(BadgeGrowth, s.StartPotential > 0 && s.PotentialOutput >= s.StartPotential*b.GrowthFactor)
	award(BadgePerfectTurn, score >= b.PerfectScore)
	return earned
}
