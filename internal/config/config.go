// Package config loads process configuration from the environment and the
// economic model from optional YAML files.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

// Server is the configuration of the macrogame server.
type Server struct {
	Port         int      `env:"MACRO_PORT" envDefault:"8080"`
	DBPath       string   `env:"MACRO_DB_PATH" envDefault:"data/macrogame.db"`
	JournalDir   string   `env:"MACRO_JOURNAL_DIR" envDefault:"data/journal"`
	Ephemeral    bool     `env:"MACRO_EPHEMERAL"` // no database, no journal
	AdminKey     string   `env:"MACRO_ADMIN_KEY"`
	TuningPath   string   `env:"MACRO_TUNING_PATH"`
	AnchorsPath  string   `env:"MACRO_ANCHORS_PATH"`
	RandomOrgKey string   `env:"RANDOM_ORG_API_KEY"`
	AnthropicKey string   `env:"ANTHROPIC_API_KEY"` // empty = template bulletins
	LogLevel     string   `env:"MACRO_LOG_LEVEL" envDefault:"info"`
	DecisionRate int      `env:"MACRO_DECISION_RATE" envDefault:"600"` // per IP per hour
	AutosaveS    int      `env:"MACRO_AUTOSAVE" envDefault:"300"`      // seconds, 0 = only on shutdown
	CORSOrigins  []string `env:"CORS_ORIGINS" envSeparator:","`
}

// Advisor is the configuration of the autopilot client.
type Advisor struct {
	APIURL    string `env:"MACRO_API_URL" envDefault:"http://localhost:8080"`
	SessionID string `env:"ADVISOR_SESSION"`
	Mode      string `env:"ADVISOR_MODE" envDefault:"campaign"`
	StartYear int    `env:"ADVISOR_START_YEAR"`
	IntervalS int    `env:"ADVISOR_INTERVAL" envDefault:"5"` // seconds between turns
	LogLevel  string `env:"MACRO_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer parses the server configuration.
func LoadServer() (Server, error) {
	var cfg Server
	err := ParseEnv(&cfg)
	return cfg, err
}

// LoadAdvisor parses the advisor configuration.
func LoadAdvisor() (Advisor, error) {
	var cfg Advisor
	err := ParseEnv(&cfg)
	return cfg, err
}

// LogLevel maps a level name to a slog level, defaulting to info.
func LogLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadModel builds the economic model from optional tuning and anchor
// files. Empty paths select the compiled-in defaults.
func LoadModel(tuningPath, anchorsPath string) (*economy.Model, error) {
	params := economy.DefaultParams()
	if tuningPath != "" {
		p, err := economy.LoadParams(tuningPath)
		if err != nil {
			return nil, err
		}
		params = p
	}

	anchors := economy.DefaultAnchors()
	if anchorsPath != "" {
		a, err := economy.LoadAnchors(anchorsPath)
		if err != nil {
			return nil, err
		}
		anchors = a
	}

	return economy.NewModel(params, anchors), nil
}
