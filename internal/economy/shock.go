package economy

import (
	"fmt"
	"math"
)

// ShockKind names an exogenous event.
type ShockKind string

const (
	ShockNone   ShockKind = "none"
	ShockBoom   ShockKind = "boom"
	ShockCrisis ShockKind = "crisis"
	ShockEnergy ShockKind = "energy"
	ShockTech   ShockKind = "tech"
)

// Label returns the human-readable event name.
func (k ShockKind) Label() string {
	switch k {
	case ShockBoom:
		return "Economic boom"
	case ShockCrisis:
		return "Financial crisis"
	case ShockEnergy:
		return "Energy price spike"
	case ShockTech:
		return "Technology breakthrough"
	default:
		return "Quiet year"
	}
}

// Shock is the outcome of one draw.
type Shock struct {
	Kind      ShockKind `json:"kind"`
	Magnitude float64   `json:"magnitude"`
}

// ApplyShock draws one event from rng and applies it to s. Every event
// other than none records "<year>: <label>" as an achievement. A nil rng
// or a completed campaign yields no shock.
func ApplyShock(s *Snapshot, rng Rand, p ShockParams) Shock {
	if rng == nil || s.CampaignComplete {
		return Shock{Kind: ShockNone}
	}

	kind := drawKind(rng.Float64(), p.Weights)
	sh := Shock{Kind: kind}

	switch kind {
	case ShockBoom:
		sh.Magnitude = uniform(rng, p.Boom)
		s.Output += sh.Magnitude
	case ShockCrisis:
		sh.Magnitude = uniform(rng, p.Crisis)
		s.Output = math.Max(0, s.Output-sh.Magnitude)
	case ShockEnergy:
		sh.Magnitude = uniform(rng, p.Energy)
		s.Inflation += sh.Magnitude
	case ShockTech:
		sh.Magnitude = uniform(rng, p.Tech)
		s.PotentialOutput += sh.Magnitude
	default:
		return sh
	}

	s.addAchievement(fmt.Sprintf("%d: %s", s.Year, kind.Label()))
	return sh
}

// drawKind maps u in [0, 1) onto the weighted outcomes in fixed order.
func drawKind(u float64, w ShockWeights) ShockKind {
	outcomes := [...]struct {
		kind   ShockKind
		weight float64
	}{
		{ShockNone, w.None},
		{ShockBoom, w.Boom},
		{ShockCrisis, w.Crisis},
		{ShockEnergy, w.Energy},
		{ShockTech, w.Tech},
	}

	total := 0.0
	for _, o := range outcomes {
		total += math.Max(0, o.weight)
	}
	if total <= 0 {
		return ShockNone
	}

	x := u * total
	acc := 0.0
	for _, o := range outcomes {
		if o.weight <= 0 {
			continue
		}
		acc += o.weight
		if x < acc {
			return o.kind
		}
	}
	// u rounding to 1.0 lands on the last positive weight.
	for i := len(outcomes) - 1; i >= 0; i-- {
		if outcomes[i].weight > 0 {
			return outcomes[i].kind
		}
	}
	return ShockNone
}

func uniform(rng Rand, r Range) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}
