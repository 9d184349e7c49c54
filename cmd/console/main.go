// Command console plays one macrogame session in the terminal, without the
// HTTP server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/veryluckygirl-lab/macrogame/internal/advisor"
	"github.com/veryluckygirl-lab/macrogame/internal/config"
	"github.com/veryluckygirl-lab/macrogame/internal/economy"
	"github.com/veryluckygirl-lab/macrogame/internal/entropy"
	"github.com/veryluckygirl-lab/macrogame/internal/llm"
	"github.com/veryluckygirl-lab/macrogame/internal/session"
)

// levers are prompted in this order each turn.
var levers = []struct {
	name   string
	prompt string
}{
	{"g", "Government spending (G)"},
	{"t", "Taxes (T)"},
	{"r", "Interest rate % (r)"},
	{"tech_invest", "Technology investment"},
	{"export_boost", "Export boost (0.1 = +10%)"},
}

func main() {
	mode := flag.String("mode", "campaign", "sandbox or campaign")
	year := flag.Int("year", 0, "start year (0 = default)")
	seed := flag.Int64("seed", 0, "random seed (0 = random)")
	turns := flag.Int("turns", 0, "stop after this many turns (0 = until the campaign ends)")
	auto := flag.Bool("auto", false, "let the advisor play")
	tuning := flag.String("tuning", "", "model tuning YAML")
	anchors := flag.String("anchors", "", "historical anchors YAML")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	model, err := config.LoadModel(*tuning, *anchors)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *seed == 0 {
		s, err := entropy.NewSeed()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		*seed = s
	}

	g := &game{
		sess:   session.New("console", *seed, model, economy.ParseMode(*mode), *year),
		params: model.Params,
		policy: advisor.DefaultPolicy(),
		in:     bufio.NewScanner(os.Stdin),
		out:    os.Stdout,
		p:      message.NewPrinter(language.English),
		auto:   *auto,
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		g.pause = 600 * time.Millisecond
	}

	if err := g.run(*turns); err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type game struct {
	sess   *session.Session
	params economy.Params
	policy advisor.Policy
	in     *bufio.Scanner
	out    io.Writer
	p      *message.Printer
	auto   bool
	pause  time.Duration
}

func (g *game) run(maxTurns int) error {
	snap := g.sess.Snapshot()
	g.p.Fprintf(g.out, "Macrogame (%s), starting %d, seed %d\n", snap.Mode, snap.Year, g.sess.Seed)

	for played := 0; maxTurns == 0 || played < maxTurns; played++ {
		snap = g.sess.Snapshot()
		if snap.CampaignComplete {
			break
		}
		g.printState(snap)

		d, err := g.readDecision(snap)
		if err != nil {
			g.printSummary(g.sess.Snapshot())
			return err
		}

		report, next, err := g.sess.Play(d)
		if err != nil {
			return err
		}
		g.printReport(report, next)
		time.Sleep(g.pause)
	}

	g.printSummary(g.sess.Snapshot())
	return nil
}

func (g *game) printState(s *economy.Snapshot) {
	g.p.Fprintf(g.out, "\n── %s turn, %d ──\n", humanize.Ordinal(s.Turn), s.Year)
	g.p.Fprintf(g.out, "  GDP %.1f (potential %.1f, gap %+.1f)\n", s.Output, s.PotentialOutput, s.OutputGap())
	g.p.Fprintf(g.out, "  Inflation %.2f%%  Unemployment %.2f%%\n", s.Inflation, s.Unemployment)
	g.p.Fprintf(g.out, "  Exports %.1f  Imports %.1f\n", s.Exports, s.Imports)
}

// readDecision prompts for each lever. Unparsable answers count as 0 and
// "?" prints the advisor's suggestion.
func (g *game) readDecision(s *economy.Snapshot) (economy.Decision, error) {
	advice := advisor.Decide(g.params, g.policy, s)
	if g.auto {
		fmt.Fprintf(g.out, "  advisor: %s\n", advice.Rationale)
		return advice.Decision, nil
	}

	var vals [5]float64
	for i := 0; i < len(levers); {
		fmt.Fprintf(g.out, "%s: ", levers[i].prompt)
		if !g.in.Scan() {
			if err := g.in.Err(); err != nil {
				return economy.Decision{}, err
			}
			return economy.Decision{}, io.EOF
		}
		line := strings.TrimSpace(g.in.Text())
		if line == "?" {
			g.printAdvice(advice)
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > economy.MaxLever {
			if line != "" {
				fmt.Fprintln(g.out, "  not a number, using 0")
			}
			v = 0
		}
		vals[i] = v
		i++
	}

	return economy.Decision{G: vals[0], T: vals[1], R: vals[2], TechInvest: vals[3], ExportBoost: vals[4]}, nil
}

func (g *game) printAdvice(a advisor.Advice) {
	d := a.Decision
	g.p.Fprintf(g.out, "  advisor: G %.1f, T %.1f, r %.2f, tech %.1f, boost %.2f\n",
		d.G, d.T, d.R, d.TechInvest, d.ExportBoost)
	fmt.Fprintf(g.out, "  %s\n", a.Rationale)
}

func (g *game) printReport(rep economy.TurnReport, s *economy.Snapshot) {
	last := s.History[len(s.History)-1]
	g.p.Fprintf(g.out, "  → %s", rep.Shock.Kind.Label())
	if rep.Shock.Kind != economy.ShockNone {
		g.p.Fprintf(g.out, " (%.1f)", rep.Shock.Magnitude)
	}
	g.p.Fprintf(g.out, ": GDP %.1f, inflation %.2f%%, unemployment %.2f%%\n",
		last.Output, last.Inflation, last.Unemployment)
	fmt.Fprintf(g.out, "  %q\n", llm.Headline(llm.FromSnapshot(g.params, s)))
	fmt.Fprintf(g.out, "  score %s, total %s\n", humanize.Commaf(round1(rep.Score)), humanize.Commaf(round1(rep.CumulativeScore)))
	for _, badge := range rep.NewAchievements {
		fmt.Fprintf(g.out, "  ★ %s\n", badge)
	}
}

func (g *game) printSummary(s *economy.Snapshot) {
	turns := len(s.History)
	fmt.Fprintf(g.out, "\n%s turns played, total score %s\n",
		humanize.Comma(int64(turns)), humanize.Commaf(round1(s.CumulativeScore)))
	if turns > 0 {
		g.p.Fprintf(g.out, "Average score %.1f\n", s.CumulativeScore/float64(turns))
	}
	if len(s.Achievements) > 0 {
		fmt.Fprintln(g.out, "Achievements:")
		for _, a := range s.Achievements {
			fmt.Fprintf(g.out, "  %s\n", a)
		}
	}
	if turns > 0 {
		b := llm.GenerateBulletin(context.Background(), nil, llm.FromSnapshot(g.params, s))
		fmt.Fprintf(g.out, "\n%s", b.Content)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
