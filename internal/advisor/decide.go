// Package advisor implements a rule-based autopilot player. It observes a
// session through the HTTP API, decides a policy with a Taylor-style rule,
// and acts by submitting the decision.
package advisor

import (
	"fmt"
	"math"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

// Policy holds the rule's fixed settings.
type Policy struct {
	NeutralRate    float64 `json:"neutral_rate"`
	InflationGain  float64 `json:"inflation_gain"`
	GapGain        float64 `json:"gap_gain"` // per percent of potential output
	TaxShare       float64 `json:"tax_share"`
	TechInvest     float64 `json:"tech_invest"`
	TechMaxInflate float64 `json:"tech_max_inflation"` // skip tech above this inflation
}

// DefaultPolicy is a textbook Taylor rule with a balanced fiscal stance.
func DefaultPolicy() Policy {
	return Policy{
		NeutralRate:    2,
		InflationGain:  1.5,
		GapGain:        0.5,
		TaxShare:       0.1,
		TechInvest:     10,
		TechMaxInflate: 4,
	}
}

// Advice is a suggested decision and the reasoning behind it.
type Advice struct {
	Decision  economy.Decision `json:"decision"`
	Target    float64          `json:"target_output"`
	Rationale string           `json:"rationale"`
}

// Decide sets the interest rate from the Taylor rule, then solves the IS
// curve for the spending that lands output on next turn's potential,
// assuming no shock.
func Decide(p economy.Params, pol Policy, s *economy.Snapshot) Advice {
	gapPct := 0.0
	if s.PotentialOutput > 0 {
		gapPct = s.OutputGap() / s.PotentialOutput * 100
	}

	r := pol.NeutralRate +
		pol.InflationGain*(s.Inflation-p.TargetInflation) +
		pol.GapGain*gapPct
	r = math.Max(0, r)

	tech := 0.0
	if s.Inflation <= pol.TechMaxInflate {
		tech = pol.TechInvest
	}
	target := s.PotentialOutput + tech*p.TechToPotential

	tax := math.Max(0, pol.TaxShare*s.Output)
	consumption := p.MPC * s.Output
	investment := math.Max(0, p.BaseInvestment+p.InvestmentGapCoef*(s.PotentialOutput-s.Output)-p.InterestSensitivity*r)
	netExports := s.Exports - s.Imports
	g := math.Max(0, target-(consumption+investment+netExports-tax))

	return Advice{
		Decision: economy.Decision{G: g, T: tax, R: r, TechInvest: tech},
		Target:   target,
		Rationale: fmt.Sprintf("gap %.1f%%, inflation %.1f%%: rate %.2f, spending %.1f against taxes %.1f",
			gapPct, s.Inflation, r, g, tax),
	}
}
