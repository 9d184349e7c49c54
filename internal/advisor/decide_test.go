package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

func TestDecideClosesGap(t *testing.T) {
	m := economy.NewModel(economy.DefaultParams(), nil)
	s := m.NewSnapshot(economy.ModeSandbox, 0)

	adv := Decide(m.Params, DefaultPolicy(), s)
	assert.Equal(t, economy.Decision{G: 455, T: 100, R: 2, TechInvest: 10}, adv.Decision)
	assert.Equal(t, 1005.0, adv.Target)
	assert.NotEmpty(t, adv.Rationale)

	require.NoError(t, m.Advance(s, adv.Decision))
	assert.InDelta(t, 0, s.OutputGap(), 1e-9)
}

func TestDecideTracksTarget(t *testing.T) {
	m := economy.NewModel(economy.DefaultParams(), economy.DefaultAnchors())
	s := m.NewSnapshot(economy.ModeCampaign, 0)

	// Without shocks the rule lands on potential every turn.
	for !s.CampaignComplete {
		adv := Decide(m.Params, DefaultPolicy(), s)
		_, err := m.PlayTurn(s, adv.Decision, nil, nil)
		require.NoError(t, err)

		last := s.History[len(s.History)-1]
		assert.InDelta(t, last.PotentialOutput, last.Output, 1e-6, "turn %d", last.Turn)
	}
	assert.Len(t, s.History, 10)
}

func TestDecideTightensOnInflation(t *testing.T) {
	p := economy.DefaultParams()
	pol := DefaultPolicy()
	s := &economy.Snapshot{Output: 1000, PotentialOutput: 1000, Inflation: 6, Exports: 100, Imports: 80}

	adv := Decide(p, pol, s)
	assert.Equal(t, 8.0, adv.Decision.R, "2 + 1.5*4")
	assert.Zero(t, adv.Decision.TechInvest, "tech invest above the inflation cap")

	s.Inflation = 0
	s.Output = 900
	adv = Decide(p, pol, s)
	assert.Zero(t, adv.Decision.R, "rate floors at zero")
	assert.GreaterOrEqual(t, adv.Decision.G, 0.0)
	assert.GreaterOrEqual(t, adv.Decision.T, 0.0)
}
