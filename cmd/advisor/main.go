// Command advisor plays a macrogame session on autopilot.
// It observes the session, decides a policy with a Taylor-style rule,
// and acts by posting the decision through the API.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veryluckygirl-lab/macrogame/internal/advisor"
	"github.com/veryluckygirl-lab/macrogame/internal/config"
	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

func main() {
	cfg, err := config.LoadAdvisor()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.LogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	interval := time.Duration(cfg.IntervalS) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	slog.Info("macrogame advisor starting",
		"api_url", cfg.APIURL,
		"interval", interval,
	)

	observer := advisor.NewObserver(cfg.APIURL)
	actor := advisor.NewActor(cfg.APIURL)
	policy := advisor.DefaultPolicy()

	// Wait for the API to be ready before the first cycle.
	slog.Info("waiting for macrogame API...")
	waitForAPI(observer)

	sessionID := cfg.SessionID
	if sessionID == "" {
		id, err := actor.CreateSession(economy.ParseMode(cfg.Mode), cfg.StartYear)
		if err != nil {
			slog.Error("create session failed", "error", err)
			os.Exit(1)
		}
		sessionID = id
		slog.Info("session created", "session", sessionID, "mode", cfg.Mode)
	}

	// Run first cycle immediately.
	if done := runCycle(observer, actor, policy, sessionID); done {
		fmt.Println("Campaign complete.")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if done := runCycle(observer, actor, policy, sessionID); done {
				fmt.Println("Campaign complete.")
				return
			}
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("Advisor stopped.")
			return
		}
	}
}

// runCycle executes one observe → decide → act cycle and reports whether
// the session has finished.
func runCycle(observer *advisor.Observer, actor *advisor.Actor, policy advisor.Policy, sessionID string) bool {
	// Observe.
	obs, err := observer.Observe(sessionID)
	if err != nil {
		slog.Error("observation failed", "error", err)
		return false
	}
	snap := obs.Snapshot
	if snap.CampaignComplete {
		slog.Info("session already complete", "score", fmt.Sprintf("%.1f", snap.CumulativeScore))
		return true
	}
	slog.Info("observation complete",
		"turn", snap.Turn,
		"year", snap.Year,
		"gap", fmt.Sprintf("%.1f", snap.OutputGap()),
		"inflation", fmt.Sprintf("%.2f", snap.Inflation),
		"unemployment", fmt.Sprintf("%.2f", snap.Unemployment),
	)

	// Decide.
	advice := advisor.Decide(obs.Params, policy, snap)
	slog.Info("decision made", "rationale", advice.Rationale)

	// Act.
	result, err := actor.Act(sessionID, advice.Decision)
	if errors.Is(err, advisor.ErrComplete) {
		return true
	}
	if err != nil {
		slog.Error("decision rejected", "error", err)
		return false
	}

	rep := result.Report
	slog.Info("turn played",
		"turn", rep.Turn,
		"shock", rep.Shock.Kind.Label(),
		"score", fmt.Sprintf("%.1f", rep.Score),
		"total", fmt.Sprintf("%.1f", rep.CumulativeScore),
		"badges", rep.NewAchievements,
	)
	return rep.CampaignComplete
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(observer *advisor.Observer) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for !observer.Ready() {
		if time.Now().After(deadline) {
			slog.Error("macrogame API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("macrogame not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
	slog.Info("macrogame API is ready")
}
