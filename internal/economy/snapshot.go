// Package economy implements the turn-based macroeconomic model: an IS curve
// for output, a Phillips curve for inflation, an Okun-style unemployment gap,
// random shocks, and a deviation-based score.
package economy

import "slices"

// Mode selects where the Phillips-curve and unemployment baselines come from.
type Mode string

const (
	// ModeSandbox uses fixed baselines and counts years from the start year.
	ModeSandbox Mode = "sandbox"
	// ModeCampaign re-anchors baselines to the historical table each year
	// and ends after the last anchored year.
	ModeCampaign Mode = "campaign"
)

// ParseMode maps a user-supplied name to a Mode, defaulting to sandbox.
func ParseMode(s string) Mode {
	if Mode(s) == ModeCampaign {
		return ModeCampaign
	}
	return ModeSandbox
}

// HistoryPoint is the state recorded at the end of one completed turn.
type HistoryPoint struct {
	Turn            int       `json:"turn"`
	Year            int       `json:"year"`
	Output          float64   `json:"output"`
	PotentialOutput float64   `json:"potential_output"`
	Inflation       float64   `json:"inflation"`
	Unemployment    float64   `json:"unemployment"`
	Score           float64   `json:"score"`
	Shock           ShockKind `json:"shock"`
}

// Snapshot is the full mutable state of one economy. A session owns exactly
// one snapshot and mutates it in place; reset replaces it.
type Snapshot struct {
	Mode Mode `json:"mode"`

	Output              float64 `json:"output"`
	PotentialOutput     float64 `json:"potential_output"`
	Inflation           float64 `json:"inflation"`
	Unemployment        float64 `json:"unemployment"`
	NaturalUnemployment float64 `json:"natural_unemployment"`
	Exports             float64 `json:"exports"`
	Imports             float64 `json:"imports"`
	BaseExports         float64 `json:"base_exports"`
	BaseImports         float64 `json:"base_imports"`
	StartPotential      float64 `json:"start_potential"`

	StartYear int `json:"start_year"`
	Year      int `json:"year"`
	Turn      int `json:"turn"`      // 1-based; always len(History)+1
	MaxTurns  int `json:"max_turns"` // sandbox only, 0 = unlimited

	CumulativeScore  float64        `json:"cumulative_score"`
	History          []HistoryPoint `json:"history"`
	Achievements     []string       `json:"achievements"`
	CampaignComplete bool           `json:"campaign_complete"`
}

// OutputGap returns Y - Y_pot.
func (s *Snapshot) OutputGap() float64 {
	return s.Output - s.PotentialOutput
}

// HasAchievement reports whether badge has been earned.
func (s *Snapshot) HasAchievement(badge string) bool {
	return slices.Contains(s.Achievements, badge)
}

// addAchievement inserts badge if absent and reports whether it was new.
func (s *Snapshot) addAchievement(badge string) bool {
	if s.HasAchievement(badge) {
		return false
	}
	s.Achievements = append(s.Achievements, badge)
	return true
}

// Clone returns a deep copy safe to hand to renderers.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.History = slices.Clone(s.History)
	c.Achievements = slices.Clone(s.Achievements)
	if c.History == nil {
		c.History = []HistoryPoint{}
	}
	if c.Achievements == nil {
		c.Achievements = []string{}
	}
	return &c
}

// Series is the history laid out as parallel columns for charting.
type Series struct {
	Turns           []int     `json:"turns"`
	Years           []int     `json:"years"`
	Output          []float64 `json:"output"`
	PotentialOutput []float64 `json:"potential_output"`
	Inflation       []float64 `json:"inflation"`
	Unemployment    []float64 `json:"unemployment"`
	Score           []float64 `json:"score"`
}

// Series exports the history, one point per completed turn.
func (s *Snapshot) Series() Series {
	n := len(s.History)
	out := Series{
		Turns:           make([]int, 0, n),
		Years:           make([]int, 0, n),
		Output:          make([]float64, 0, n),
		PotentialOutput: make([]float64, 0, n),
		Inflation:       make([]float64, 0, n),
		Unemployment:    make([]float64, 0, n),
		Score:           make([]float64, 0, n),
	}
	for _, h := range s.History {
		out.Turns = append(out.Turns, h.Turn)
		out.Years = append(out.Years, h.Year)
		out.Output = append(out.Output, h.Output)
		out.PotentialOutput = append(out.PotentialOutput, h.PotentialOutput)
		out.Inflation = append(out.Inflation, h.Inflation)
		out.Unemployment = append(out.Unemployment, h.Unemployment)
		out.Score = append(out.Score, h.Score)
	}
	return out
}
