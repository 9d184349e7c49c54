package economy

import (
	"errors"
	"math"
)

var (
	// ErrCampaignComplete is returned for decisions submitted after the
	// terminal year. The snapshot is left untouched.
	ErrCampaignComplete = errors.New("campaign already complete")
	// ErrInvalidDecision wraps decisions with non-finite or out-of-range levers.
	ErrInvalidDecision = errors.New("invalid decision")
)

// Rand is a uniform source of floats in [0, 1).
type Rand interface {
	Float64() float64
}

// Model binds coefficients to an anchor table. It holds no per-session state
// and is safe to share across sessions.
type Model struct {
	Params  Params
	Anchors *AnchorTable
}

// NewModel creates a Model. A nil anchor table makes every campaign year
// fall back to snapshot values.
func NewModel(p Params, anchors *AnchorTable) *Model {
	if anchors == nil {
		anchors = &AnchorTable{}
	}
	return &Model{Params: p, Anchors: anchors}
}

// NewSnapshot builds the initial snapshot for mode. startYear 0 selects the
// first anchored year (campaign) or the sandbox start year.
func (m *Model) NewSnapshot(mode Mode, startYear int) *Snapshot {
	start := m.Params.Initial
	s := &Snapshot{
		Mode:                mode,
		Output:              start.Output,
		PotentialOutput:     start.PotentialOutput,
		Inflation:           start.Inflation,
		Unemployment:        start.Unemployment,
		NaturalUnemployment: start.NaturalUnemployment,
		Exports:             start.Exports,
		Imports:             start.Imports,
		BaseExports:         start.Exports,
		BaseImports:         start.Imports,
		Turn:                1,
		History:             []HistoryPoint{},
		Achievements:        []string{},
	}

	switch mode {
	case ModeCampaign:
		if startYear == 0 {
			startYear, _ = m.Anchors.First()
		}
		if a, ok := m.Anchors.Lookup(startYear); ok {
			s.Output = a.GDP
			s.PotentialOutput = a.GDP
			s.Inflation = math.Max(0, a.Inflation)
			s.Unemployment = math.Max(0, a.Unemployment)
		}
	default:
		s.Mode = ModeSandbox
		if startYear == 0 {
			startYear = m.Params.Sandbox.StartYear
		}
		s.MaxTurns = m.Params.Sandbox.MaxTurns
	}

	s.StartYear = startYear
	s.Year = startYear
	s.StartPotential = s.PotentialOutput
	return s
}

// baselines returns the Phillips-curve intercept and the unemployment
// baseline for the year being played.
func (m *Model) baselines(s *Snapshot) (inflation, unemployment float64) {
	if s.Mode != ModeCampaign {
		return m.Params.BaselineInflation, s.NaturalUnemployment
	}
	if a, ok := m.Anchors.Lookup(s.Year); ok {
		return a.Inflation, a.Unemployment
	}
	return s.Inflation, s.NaturalUnemployment
}

// Advance applies one decision to the snapshot: demand from the IS curve,
// then potential output, then inflation and unemployment from the gap.
func (m *Model) Advance(s *Snapshot, d Decision) error {
	if s.CampaignComplete {
		return ErrCampaignComplete
	}
	if err := d.Validate(); err != nil {
		return err
	}
	d = d.Sanitize()
	p := m.Params

	consumption := p.MPC * s.Output
	investment := math.Max(0, p.BaseInvestment+p.InvestmentGapCoef*(s.PotentialOutput-s.Output)-p.InterestSensitivity*d.R)
	netExports := s.Exports*(1+d.ExportBoost) - s.Imports

	s.Output = math.Max(0, consumption+investment+d.G+netExports-d.T)
	s.PotentialOutput += d.TechInvest * p.TechToPotential

	baseInflation, baseUnemployment := m.baselines(s)
	gap := s.OutputGap()
	s.Inflation = math.Max(0, baseInflation+p.PhillipsSlope*gap)
	s.Unemployment = math.Max(0, baseUnemployment-p.OkunSlope*gap)
	return nil
}

// AdvanceTurn moves the turn and year counters forward and marks the
// campaign complete when the terminal year or turn has been played.
func (m *Model) AdvanceTurn(s *Snapshot) {
	if s.CampaignComplete {
		return
	}
	s.Turn++

	switch s.Mode {
	case ModeCampaign:
		next, ok := m.Anchors.Next(s.Year)
		if !ok {
			s.CampaignComplete = true
			return
		}
		s.Year = next
	default:
		if s.MaxTurns > 0 && s.Turn > s.MaxTurns {
			s.CampaignComplete = true
			return
		}
		s.Year++
	}
}

// TurnReport summarizes one played turn.
type TurnReport struct {
	Turn             int      `json:"turn"`
	Year             int      `json:"year"`
	Decision         Decision `json:"decision"`
	Shock            Shock    `json:"shock"`
	Score            float64  `json:"score"`
	CumulativeScore  float64  `json:"cumulative_score"`
	NewAchievements  []string `json:"new_achievements"`
	CampaignComplete bool     `json:"campaign_complete"`
}

// PlayTurn runs a full turn: advance, shock, score, record, progress.
// A nil rng disables shocks; a nil drift keeps trade constant.
func (m *Model) PlayTurn(s *Snapshot, d Decision, rng Rand, drift *TradeDrift) (TurnReport, error) {
	if s.CampaignComplete {
		return TurnReport{}, ErrCampaignComplete
	}
	turn, year := s.Turn, s.Year
	if err := m.Advance(s, d); err != nil {
		return TurnReport{}, err
	}
	earnedBefore := len(s.Achievements)

	shock := ApplyShock(s, rng, m.Params.Shocks)
	score := m.Score(s)

	s.History = append(s.History, HistoryPoint{
		Turn:            turn,
		Year:            year,
		Output:          s.Output,
		PotentialOutput: s.PotentialOutput,
		Inflation:       s.Inflation,
		Unemployment:    s.Unemployment,
		Score:           score,
		Shock:           shock.Kind,
	})
	m.EvaluateAchievements(s, score)
	s.CumulativeScore += score

	m.AdvanceTurn(s)
	drift.Apply(s)

	return TurnReport{
		Turn:             turn,
		Year:             year,
		Decision:         d.Sanitize(),
		Shock:            shock,
		Score:            score,
		CumulativeScore:  s.CumulativeScore,
		NewAchievements:  append([]string{}, s.Achievements[earnedBefore:]...),
		CampaignComplete: s.CampaignComplete,
	}, nil
}
