// Command macrogame serves the macroeconomic policy game over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/veryluckygirl-lab/macrogame/internal/api"
	"github.com/veryluckygirl-lab/macrogame/internal/config"
	"github.com/veryluckygirl-lab/macrogame/internal/entropy"
	"github.com/veryluckygirl-lab/macrogame/internal/llm"
	"github.com/veryluckygirl-lab/macrogame/internal/persistence"
	"github.com/veryluckygirl-lab/macrogame/internal/session"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.LogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("macrogame starting")

	// ── Model ─────────────────────────────────────────────────────────
	model, err := config.LoadModel(cfg.TuningPath, cfg.AnchorsPath)
	if err != nil {
		slog.Error("failed to load model", "error", err)
		os.Exit(1)
	}
	first, _ := model.Anchors.First()
	slog.Info("model loaded",
		"mpc", model.Params.MPC,
		"target_inflation", model.Params.TargetInflation,
		"anchors", model.Anchors.Len(),
		"first_anchor", first,
	)

	// ── Seeds ─────────────────────────────────────────────────────────
	seeds := entropy.NewSeed
	if client := entropy.NewClient(cfg.RandomOrgKey); client.Enabled() {
		slog.Info("random.org seeding enabled")
		seeds = client.Seed
	} else {
		slog.Info("RANDOM_ORG_API_KEY not set, seeding from crypto/rand")
	}
	sessions := session.NewManager(model, seeds)

	// ── Storage ───────────────────────────────────────────────────────
	var db *persistence.DB
	var journal *persistence.Journal
	if cfg.Ephemeral {
		slog.Warn("ephemeral mode, sessions will not survive a restart")
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			slog.Error("failed to create data directory", "error", err)
			os.Exit(1)
		}
		db, err = persistence.Open(cfg.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.DBPath)

		records, err := db.LoadSessions()
		if err != nil {
			slog.Error("failed to load sessions", "error", err)
			os.Exit(1)
		}
		for _, rec := range records {
			sessions.Add(session.Restore(rec, model))
		}
		if len(records) > 0 {
			last, _ := db.GetMeta("last_snapshot")
			slog.Info("sessions restored", "count", len(records), "last_snapshot", last)
		}

		journal = persistence.NewJournal(cfg.JournalDir, "turns")
		defer func() {
			if err := journal.Close(); err != nil {
				slog.Error("journal close failed", "error", err)
			}
		}()
		slog.Info("turn journal enabled", "dir", cfg.JournalDir)
	}

	// ── Bulletins ─────────────────────────────────────────────────────
	llmClient := llm.NewClient(cfg.AnthropicKey)
	if llmClient.Enabled() {
		slog.Info("LLM client enabled (Haiku)")
	} else {
		slog.Info("ANTHROPIC_API_KEY not set, bulletins will use templates")
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("MACRO_ADMIN_KEY not set, admin endpoints will be disabled")
	}

	apiServer := &api.Server{
		Sessions:     sessions,
		DB:           db,
		Journal:      journal,
		Port:         cfg.Port,
		AdminKey:     cfg.AdminKey,
		CORSOrigins:  cfg.CORSOrigins,
		DecisionRate: cfg.DecisionRate,
		LLM:          llmClient,
	}
	apiServer.Start()

	// ── Run ───────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var autosave <-chan time.Time
	if db != nil && cfg.AutosaveS > 0 {
		ticker := time.NewTicker(time.Duration(cfg.AutosaveS) * time.Second)
		defer ticker.Stop()
		autosave = ticker.C
	}

	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	fmt.Println("Serving... (Ctrl+C to stop)")

loop:
	for {
		select {
		case <-autosave:
			saveAll(db, sessions)
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			break loop
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final save on shutdown.
	if db != nil {
		slog.Info("final save...")
		saveAll(db, sessions)
	}

	fmt.Println("Server stopped.")
}

func saveAll(db *persistence.DB, sessions *session.Manager) {
	list := sessions.List()
	if err := db.SaveAll(list); err != nil {
		slog.Error("save failed", "error", err)
		return
	}
	if err := db.SaveMeta("last_snapshot", time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("save snapshot time failed", "error", err)
	}
}
