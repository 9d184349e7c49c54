package economy

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// TradeDrift moves exports and imports along smooth noise curves so trade
// varies slowly from turn to turn instead of jumping.
type TradeDrift struct {
	exports   opensimplex.Noise
	imports   opensimplex.Noise
	amplitude float64
	frequency float64
}

// NewTradeDrift seeds two independent noise rows. It returns nil when the
// amplitude is not positive; a nil drift is a no-op.
func NewTradeDrift(seed int64, p DriftParams) *TradeDrift {
	if p.Amplitude <= 0 {
		return nil
	}
	return &TradeDrift{
		exports:   opensimplex.New(seed),
		imports:   opensimplex.New(seed + 1),
		amplitude: p.Amplitude,
		frequency: p.Frequency,
	}
}

// Apply sets exports and imports for the snapshot's current turn.
func (d *TradeDrift) Apply(s *Snapshot) {
	if d == nil {
		return
	}
	x := float64(s.Turn) * d.frequency
	s.Exports = math.Max(0, s.BaseExports+d.amplitude*d.exports.Eval2(x, 0))
	s.Imports = math.Max(0, s.BaseImports+d.amplitude*d.imports.Eval2(x, 0))
}
