// Package config reads server settings from the environment and table rules
// from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"okey/internal/game/okey"
)

// Config is the server's process configuration.
type Config struct {
	Addr      string
	DBPath    string
	LogLevel  string
	LogDir    string
	RulesPath string
	WebDir    string
	Game      GameConfig
}

// GameConfig is the YAML rules file. Unset fields keep the table defaults.
type GameConfig struct {
	Seats               int                `yaml:"seats"`
	TurnDurationSeconds int                `yaml:"turn_duration_seconds"`
	TimeoutPolicy       okey.TimeoutPolicy `yaml:"timeout_policy"`
	Scoring             okey.ScoringScheme `yaml:"scoring"`
	FixedPenalty        *int               `yaml:"fixed_penalty"`
	WildcardPenalty     *int               `yaml:"wildcard_penalty"`
	AllowPairs          *bool              `yaml:"allow_pairs"`
	WildcardPairs       *bool              `yaml:"wildcard_pairs"`
	EndOnEmptyPile      *bool              `yaml:"end_on_empty_pile"`
	BotSalt             uint64             `yaml:"bot_salt"`
	Intervals           IntervalConfig     `yaml:"intervals"`
}

// IntervalConfig drives the session manager loops.
type IntervalConfig struct {
	TickMillis           int `yaml:"tick_ms"`
	CleanupSeconds       int `yaml:"cleanup_seconds"`
	SessionMaxAgeMinutes int `yaml:"session_max_age_minutes"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:     ":8080",
		DBPath:   "okey.db",
		LogLevel: "info",
		Game: GameConfig{
			Seats: okey.MaxPlayers,
			Intervals: IntervalConfig{
				TickMillis:           250,
				CleanupSeconds:       60,
				SessionMaxAgeMinutes: 60,
			},
		},
	}
}

// Load reads PORT, DB_PATH, LOG_LEVEL, LOG_DIR, WEB_DIR and OKEY_RULES through getenv
// and, when OKEY_RULES names a file, the rules in it.
func Load(getenv func(string) string) (Config, error) {
	c := Default()
	if p := getenv("PORT"); p != "" {
		c.Addr = ":" + p
	}
	if p := getenv("DB_PATH"); p != "" {
		c.DBPath = p
	}
	if l := getenv("LOG_LEVEL"); l != "" {
		c.LogLevel = l
	}
	c.LogDir = getenv("LOG_DIR")
	c.WebDir = getenv("WEB_DIR")
	c.RulesPath = getenv("OKEY_RULES")
	if c.RulesPath == "" {
		return c, nil
	}
	g, err := LoadGameConfig(c.RulesPath)
	if err != nil {
		return c, err
	}
	c.Game = g
	return c, nil
}

// LoadGameConfig reads a rules file over the defaults and validates it.
func LoadGameConfig(path string) (GameConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GameConfig{}, fmt.Errorf("read game config: %w", err)
	}
	g := Default().Game
	if err := yaml.Unmarshal(data, &g); err != nil {
		return GameConfig{}, fmt.Errorf("unmarshal game config: %w", err)
	}
	if g.Seats < okey.MinPlayers || g.Seats > okey.MaxPlayers {
		return GameConfig{}, fmt.Errorf("seats must be %d..%d, got %d", okey.MinPlayers, okey.MaxPlayers, g.Seats)
	}
	i := g.Intervals
	if i.TickMillis <= 0 || i.CleanupSeconds <= 0 || i.SessionMaxAgeMinutes <= 0 {
		return GameConfig{}, fmt.Errorf("intervals must be positive: %+v", i)
	}
	if _, err := g.Rules(); err != nil {
		return GameConfig{}, err
	}
	return g, nil
}

// Rules overlays the configured values on okey.DefaultRules.
func (g GameConfig) Rules() (okey.Rules, error) {
	r := okey.DefaultRules()
	if g.TurnDurationSeconds != 0 {
		r.TurnTimeLimit = time.Duration(g.TurnDurationSeconds) * time.Second
	}
	if g.TimeoutPolicy != "" {
		r.Timeout = g.TimeoutPolicy
	}
	if g.Scoring != "" {
		r.Scoring = g.Scoring
	}
	if g.FixedPenalty != nil {
		r.FixedPenalty = *g.FixedPenalty
	}
	if g.WildcardPenalty != nil {
		r.WildcardPenalty = *g.WildcardPenalty
	}
	if g.AllowPairs != nil {
		r.Hand.AllowPairs = *g.AllowPairs
	}
	if g.WildcardPairs != nil {
		r.Hand.WildcardPairs = *g.WildcardPairs
	}
	if g.EndOnEmptyPile != nil {
		r.EndOnEmptyPile = *g.EndOnEmptyPile
	}
	if err := r.Validate(); err != nil {
		return r, fmt.Errorf("game config: %w", err)
	}
	return r, nil
}

// Tick is how often timeouts and computer players are checked.
func (i IntervalConfig) Tick() time.Duration {
	return time.Duration(i.TickMillis) * time.Millisecond
}

// Cleanup is how often stale sessions are swept.
func (i IntervalConfig) Cleanup() time.Duration {
	return time.Duration(i.CleanupSeconds) * time.Second
}

// MaxAge is how long a finished session is kept.
func (i IntervalConfig) MaxAge() time.Duration {
	return time.Duration(i.SessionMaxAgeMinutes) * time.Minute
}
