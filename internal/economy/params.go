package economy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Params holds every model coefficient. DefaultParams reproduces the
// classroom version of the game; a tuning file may override any subset.
type Params struct {
	MPC                 float64 `yaml:"mpc" json:"mpc"`                                   // c1
	BaseInvestment      float64 `yaml:"base_investment" json:"base_investment"`           // I0
	InvestmentGapCoef   float64 `yaml:"investment_gap_coef" json:"investment_gap_coef"`   // accelerator on Y_pot - Y
	InterestSensitivity float64 `yaml:"interest_sensitivity" json:"interest_sensitivity"` // b
	TechToPotential     float64 `yaml:"tech_to_potential" json:"tech_to_potential"`
	PhillipsSlope       float64 `yaml:"phillips_slope" json:"phillips_slope"` // alpha
	OkunSlope           float64 `yaml:"okun_slope" json:"okun_slope"`
	BaselineInflation   float64 `yaml:"baseline_inflation" json:"baseline_inflation"`
	TargetInflation     float64 `yaml:"target_inflation" json:"target_inflation"`
	InflationPenalty    float64 `yaml:"inflation_penalty" json:"inflation_penalty"`       // k
	UnemploymentPenalty float64 `yaml:"unemployment_penalty" json:"unemployment_penalty"` // m

	Initial InitialState `yaml:"initial" json:"initial"`
	Sandbox SandboxRules `yaml:"sandbox" json:"sandbox"`
	Shocks  ShockParams  `yaml:"shocks" json:"shocks"`
	Drift   DriftParams  `yaml:"drift" json:"drift"`
	Badges  BadgeRules   `yaml:"badges" json:"badges"`
}

// InitialState seeds a fresh snapshot when no anchor applies.
type InitialState struct {
	Output              float64 `yaml:"output" json:"output"`
	PotentialOutput     float64 `yaml:"potential_output" json:"potential_output"`
	Inflation           float64 `yaml:"inflation" json:"inflation"`
	Unemployment        float64 `yaml:"unemployment" json:"unemployment"`
	NaturalUnemployment float64 `yaml:"natural_unemployment" json:"natural_unemployment"`
	Exports             float64 `yaml:"exports" json:"exports"`
	Imports             float64 `yaml:"imports" json:"imports"`
}

// SandboxRules configures the unanchored mode.
type SandboxRules struct {
	StartYear int `yaml:"start_year" json:"start_year"`
	MaxTurns  int `yaml:"max_turns" json:"max_turns"` // 0 = unlimited
}

// Range is a closed interval for uniform draws.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// ShockWeights are relative, they need not sum to one.
type ShockWeights struct {
	None   float64 `yaml:"none" json:"none"`
	Boom   float64 `yaml:"boom" json:"boom"`
	Crisis float64 `yaml:"crisis" json:"crisis"`
	Energy float64 `yaml:"energy" json:"energy"`
	Tech   float64 `yaml:"tech" json:"tech"`
}

// ShockParams describes the shock distribution and effect sizes.
type ShockParams struct {
	Weights ShockWeights `yaml:"weights" json:"weights"`
	Boom    Range        `yaml:"boom" json:"boom"`     // added to output
	Crisis  Range        `yaml:"crisis" json:"crisis"` // subtracted from output
	Energy  Range        `yaml:"energy" json:"energy"` // added to inflation
	Tech    Range        `yaml:"tech" json:"tech"`     // added to potential output
}

// DriftParams controls the slow wander of exports and imports.
type DriftParams struct {
	Amplitude float64 `yaml:"amplitude" json:"amplitude"` // 0 disables drift
	Frequency float64 `yaml:"frequency" json:"frequency"`
}

// BadgeRules are the thresholds behind the scored achievements.
type BadgeRules struct {
	StableGap          float64 `yaml:"stable_gap" json:"stable_gap"`
	StableInflation    float64 `yaml:"stable_inflation" json:"stable_inflation"`
	StableUnemployment float64 `yaml:"stable_unemployment" json:"stable_unemployment"`
	PriceBand          float64 `yaml:"price_band" json:"price_band"`
	GrowthFactor       float64 `yaml:"growth_factor" json:"growth_factor"`
	PerfectScore       float64 `yaml:"perfect_score" json:"perfect_score"`
}

// DefaultParams returns the canonical coefficient set.
func DefaultParams() Params {
	return Params{
		MPC:                 0.6,
		BaseInvestment:      50,
		InvestmentGapCoef:   0.05,
		InterestSensitivity: 10,
		TechToPotential:     0.5,
		PhillipsSlope:       0.03,
		OkunSlope:           0.05,
		BaselineInflation:   2.0,
		TargetInflation:     2.0,
		InflationPenalty:    10,
		UnemploymentPenalty: 5,
		Initial: InitialState{
			Output:              1000,
			PotentialOutput:     1000,
			Inflation:           2.0,
			Unemployment:        5.0,
			NaturalUnemployment: 5.0,
			Exports:             100,
			Imports:             80,
		},
		Sandbox: SandboxRules{StartYear: 1},
		Shocks: ShockParams{
			Weights: ShockWeights{None: 1, Boom: 1, Crisis: 1, Energy: 1, Tech: 1},
			Boom:    Range{Min: 20, Max: 50},
			Crisis:  Range{Min: 30, Max: 70},
			Energy:  Range{Min: 1, Max: 3},
			Tech:    Range{Min: 10, Max: 30},
		},
		Drift: DriftParams{Amplitude: 4, Frequency: 0.15},
		Badges: BadgeRules{
			StableGap:          10,
			StableInflation:    5,
			StableUnemployment: 10,
			PriceBand:          0.5,
			GrowthFactor:       1.1,
			PerfectScore:       95,
		},
	}
}

// LoadParams overlays the YAML file at path onto DefaultParams.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("tuning %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("tuning %s: %w", path, err)
	}
	return p, nil
}

// Validate rejects coefficient sets the model cannot run with.
func (p Params) Validate() error {
	var errs []error
	if p.MPC < 0 || p.MPC >= 1 {
		errs = append(errs, fmt.Errorf("mpc must be in [0, 1), got %v", p.MPC))
	}
	w := p.Shocks.Weights
	for name, v := range map[string]float64{"none": w.None, "boom": w.Boom, "crisis": w.Crisis, "energy": w.Energy, "tech": w.Tech} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("shock weight %s is negative", name))
		}
	}
	if w.None+w.Boom+w.Crisis+w.Energy+w.Tech <= 0 {
		errs = append(errs, errors.New("shock weights sum to zero"))
	}
	for name, r := range map[string]Range{"boom": p.Shocks.Boom, "crisis": p.Shocks.Crisis, "energy": p.Shocks.Energy, "tech": p.Shocks.Tech} {
		if r.Min > r.Max {
			errs = append(errs, fmt.Errorf("shock range %s has min > max", name))
		}
	}
	if p.Initial.Output < 0 || p.Initial.PotentialOutput < 0 {
		errs = append(errs, errors.New("initial output must be non-negative"))
	}
	if p.Sandbox.MaxTurns < 0 {
		errs = append(errs, errors.New("sandbox max_turns must be non-negative"))
	}
	return errors.Join(errs...)
}
