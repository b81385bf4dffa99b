// Package config loads server settings from defaults, a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"github.com/jaminalder/tictactoe-engine/internal/app"
	"github.com/jaminalder/tictactoe-engine/internal/engine"
)

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Listen        string        `yaml:"listen"`
	AIDelay       time.Duration `yaml:"ai_delay"`
	Difficulty    string        `yaml:"difficulty"`
	VsAI          bool          `yaml:"vs_ai"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
	GameExpiry    time.Duration `yaml:"game_expiry"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Log           Log           `yaml:"log"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Listen:        ":8080",
		AIDelay:       app.DefaultAIDelay,
		Difficulty:    engine.Easy.String(),
		VsAI:          true,
		Heartbeat:     15 * time.Second,
		GameExpiry:    24 * time.Hour,
		SweepInterval: 4 * time.Hour,
		Log:           Log{Level: "info", Format: "json"},
	}
}

// ParseFile overlays the YAML file at path onto c.
func (c *Config) ParseFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays TICTACTOE_LISTEN, or PORT when that is unset.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("TICTACTOE_LISTEN"); ok && v != "" {
		c.Listen = v
	} else if v, ok := lookup("PORT"); ok && v != "" {
		c.Listen = ":" + v
	}
}

// Load builds the configuration from args (without the program name).
func Load(args []string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("tictactoe", pflag.ContinueOnError)
	path := fs.StringP("config", "c", "", "path to a YAML config file")
	listen := fs.StringP("listen-addr", "l", cfg.Listen, "address to listen on")
	delay := fs.Duration("ai-delay", cfg.AIDelay, "delay before the automated reply")
	diff := fs.StringP("difficulty", "d", cfg.Difficulty, "default difficulty: easy, medium or hard")
	vsAI := fs.Bool("vs-ai", cfg.VsAI, "new games play against the computer")
	level := fs.String("log-level", cfg.Log.Level, "log level")
	format := fs.String("log-format", cfg.Log.Format, "log format: json or console")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *path != "" {
		if err := cfg.ParseFile(*path); err != nil {
			return Config{}, err
		}
	}
	if lookupEnv != nil {
		cfg.ApplyEnv(lookupEnv)
	}

	// explicit flags win over file and environment
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "listen-addr":
			cfg.Listen = *listen
		case "ai-delay":
			cfg.AIDelay = *delay
		case "difficulty":
			cfg.Difficulty = *diff
		case "vs-ai":
			cfg.VsAI = *vsAI
		case "log-level":
			cfg.Log.Level = *level
		case "log-format":
			cfg.Log.Format = *format
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if _, err := engine.ParseDifficulty(c.Difficulty); err != nil {
		errs = append(errs, err)
	}
	if c.AIDelay < 0 {
		errs = append(errs, fmt.Errorf("ai_delay %v is negative", c.AIDelay))
	}
	if c.Heartbeat <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat %v must be positive", c.Heartbeat))
	}
	if c.GameExpiry <= 0 || c.SweepInterval <= 0 {
		errs = append(errs, errors.New("game_expiry and sweep_interval must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log format %q: want json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ServiceOptions maps the settings onto app.Options.
func (c Config) ServiceOptions() app.Options {
	d, _ := engine.ParseDifficulty(c.Difficulty)
	return app.Options{
		AIDelay:       c.AIDelay,
		Difficulty:    d,
		VsAI:          c.VsAI,
		GameExpiry:    c.GameExpiry,
		SweepInterval: c.SweepInterval,
	}
}

// Logger builds the zap logger described by c.Log.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
