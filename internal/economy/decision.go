package economy

import (
	"fmt"
	"math"
)

// MaxLever bounds the magnitude of any single decision field. Beyond it the
// arithmetic can overflow to infinity.
const MaxLever = 1e9

// Decision is one turn's policy levers.
type Decision struct {
	G           float64 `json:"g"`            // government spending
	T           float64 `json:"t"`            // taxes
	R           float64 `json:"r"`            // interest rate, percent
	TechInvest  float64 `json:"tech_invest"`  // raises potential output
	ExportBoost float64 `json:"export_boost"` // fraction added to exports
}

func (d Decision) fields() [5]float64 {
	return [5]float64{d.G, d.T, d.R, d.TechInvest, d.ExportBoost}
}

// Validate rejects non-finite or absurdly large levers.
func (d Decision) Validate() error {
	names := [5]string{"g", "t", "r", "tech_invest", "export_boost"}
	for i, v := range d.fields() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidDecision, names[i])
		}
		if math.Abs(v) > MaxLever {
			return fmt.Errorf("%w: %s exceeds %g", ErrInvalidDecision, names[i], MaxLever)
		}
	}
	return nil
}

// Sanitize clamps negative levers to zero.
func (d Decision) Sanitize() Decision {
	return Decision{
		G:           math.Max(0, d.G),
		T:           math.Max(0, d.T),
		R:           math.Max(0, d.R),
		TechInvest:  math.Max(0, d.TechInvest),
		ExportBoost: math.Max(0, d.ExportBoost),
	}
}
