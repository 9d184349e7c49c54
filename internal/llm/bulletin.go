// Bulletin generation: turns the latest played year into a short news item.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

const maxBulletinBadges = 5

// BulletinData holds the figures a bulletin reports on.
type BulletinData struct {
	Mode            economy.Mode
	Turn            int // last played turn, 0 before the first decision
	Year            int
	Output          float64
	Potential       float64
	PrevOutput      float64 // 0 when there is no earlier year
	Inflation       float64
	Unemployment    float64
	TargetInflation float64
	Score           float64
	CumulativeScore float64
	Shock           economy.ShockKind
	Achievements    []string // most recent last
	Complete        bool
}

// Gap returns output minus potential.
func (d *BulletinData) Gap() float64 { return d.Output - d.Potential }

// FromSnapshot collects bulletin data for the most recently played year.
func FromSnapshot(p economy.Params, s *economy.Snapshot) *BulletinData {
	d := &BulletinData{
		Mode:            s.Mode,
		Year:            s.Year,
		Output:          s.Output,
		Potential:       s.PotentialOutput,
		Inflation:       s.Inflation,
		Unemployment:    s.Unemployment,
		TargetInflation: p.TargetInflation,
		CumulativeScore: s.CumulativeScore,
		Shock:           economy.ShockNone,
		Complete:        s.CampaignComplete,
	}
	if n := len(s.History); n > 0 {
		last := s.History[n-1]
		d.Turn = last.Turn
		d.Year = last.Year
		d.Output = last.Output
		d.Potential = last.PotentialOutput
		d.Inflation = last.Inflation
		d.Unemployment = last.Unemployment
		d.Score = last.Score
		d.Shock = last.Shock
		if n > 1 {
			d.PrevOutput = s.History[n-2].Output
		}
	}
	start := max(0, len(s.Achievements)-maxBulletinBadges)
	d.Achievements = append([]string{}, s.Achievements[start:]...)
	return d
}

// Bulletin is one generated news item.
type Bulletin struct {
	GeneratedAt time.Time `json:"generated_at"`
	Turn        int       `json:"turn"`
	Year        int       `json:"year"`
	Headline    string    `json:"headline"`
	Source      string    `json:"source"` // haiku or template
	Content     string    `json:"content"`
}

// Headline picks a one-line summary. Shocks take precedence over the gap.
func Headline(d *BulletinData) string {
	if d.Turn == 0 {
		return "A new term begins at the treasury"
	}
	switch d.Shock {
	case economy.ShockBoom:
		return "Boom lifts demand across the economy"
	case economy.ShockCrisis:
		return "Financial crisis rattles markets"
	case economy.ShockEnergy:
		return "Energy prices squeeze households"
	case economy.ShockTech:
		return "Technology breakthrough expands capacity"
	}
	switch gap := d.Gap(); {
	case gap > 10:
		return "Economy runs hot above potential"
	case gap < -10:
		return "Output slips below potential"
	default:
		return "Economy holds near potential"
	}
}

// GenerateBulletin writes a bulletin with Haiku, falling back to a template
// when the client is disabled or the call fails.
func GenerateBulletin(ctx context.Context, client *Client, data *BulletinData) *Bulletin {
	b := &Bulletin{
		GeneratedAt: time.Now(),
		Turn:        data.Turn,
		Year:        data.Year,
		Headline:    Headline(data),
		Source:      "template",
	}
	if !client.Enabled() {
		b.Content = fallbackBulletin(data)
		return b
	}

	system := `You are the economics correspondent of "The Macro Ledger", a weekly paper covering a small open economy whose finance minister is the reader. Write a brief, lively news item about the year just played: lead with the headline event, then explain what happened to output, inflation and unemployment in plain language. Stay under 150 words. Never give explicit policy instructions and never mention that this is a game.`

	content, err := client.Complete(ctx, Prompt{System: system, User: buildBulletinPrompt(data), MaxTokens: 400})
	if err != nil {
		slog.Warn("bulletin generation failed, using template", "error", err)
		b.Content = fallbackBulletin(data)
		return b
	}
	b.Source = "haiku"
	b.Content = content
	return b
}

func growth(d *BulletinData) (float64, bool) {
	if d.PrevOutput <= 0 {
		return 0, false
	}
	return (d.Output/d.PrevOutput - 1) * 100, true
}

func buildBulletinPrompt(d *BulletinData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write this week's item for The Macro Ledger.\n\n")
	fmt.Fprintf(&b, "YEAR: %d (turn %d, %s mode)\n", d.Year, d.Turn, d.Mode)
	fmt.Fprintf(&b, "HEADLINE EVENT: %s\n\n", d.Shock.Label())

	fmt.Fprintf(&b, "FIGURES:\n")
	fmt.Fprintf(&b, "- Output %.1f against potential %.1f (gap %+.1f)\n", d.Output, d.Potential, d.Gap())
	if g, ok := growth(d); ok {
		fmt.Fprintf(&b, "- Growth on the previous year: %+.1f%%\n", g)
	}
	fmt.Fprintf(&b, "- Inflation %.1f%% (target %.1f%%)\n", d.Inflation, d.TargetInflation)
	fmt.Fprintf(&b, "- Unemployment %.1f%%\n", d.Unemployment)
	fmt.Fprintf(&b, "- Minister's approval score %.1f (running total %.1f)\n", d.Score, d.CumulativeScore)

	if len(d.Achievements) > 0 {
		fmt.Fprintf(&b, "\nRECENT MILESTONES:\n")
		for _, a := range d.Achievements {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	if d.Complete {
		fmt.Fprintf(&b, "\nThis is the final year of the minister's term.\n")
	}
	return b.String()
}

func fallbackBulletin(d *BulletinData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "THE MACRO LEDGER\n")
	fmt.Fprintf(&b, "================\n")
	fmt.Fprintf(&b, "Year %d, turn %d\n\n", d.Year, d.Turn)
	fmt.Fprintf(&b, "%s\n\n", strings.ToUpper(Headline(d)))

	fmt.Fprintf(&b, "Output stands at %.1f against a potential of %.1f", d.Output, d.Potential)
	if gap := d.Gap(); math.Abs(gap) < 0.05 {
		b.WriteString(", with no gap to speak of.\n")
	} else {
		fmt.Fprintf(&b, ", a gap of %+.1f.\n", gap)
	}
	if g, ok := growth(d); ok {
		fmt.Fprintf(&b, "The economy grew %+.1f%% on the year.\n", g)
	}
	fmt.Fprintf(&b, "Inflation is %.1f%% and unemployment %.1f%%.\n", d.Inflation, d.Unemployment)
	if d.Turn > 0 {
		fmt.Fprintf(&b, "The ministry scored %.1f this year, %.1f overall.\n", d.Score, d.CumulativeScore)
	}

	if len(d.Achievements) > 0 {
		fmt.Fprintf(&b, "\nMILESTONES\n")
		for _, a := range d.Achievements {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	if d.Complete {
		fmt.Fprintf(&b, "\nThe term has ended.\n")
	}
	return b.String()
}
