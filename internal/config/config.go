// Package config resolves simulator settings from an optional .env file, the
// process environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvScenario    = "TILEWORLD_SCENARIO"
	EnvTick        = "TILEWORLD_TICK"
	EnvDuration    = "TILEWORLD_DURATION"
	EnvMetricsAddr = "TILEWORLD_METRICS_ADDR"
	EnvAccelerated = "TILEWORLD_ACCELERATED"
)

// ErrInvalidTick is returned when the tick interval cannot drive the world.
var ErrInvalidTick = errors.New("tick must be in (0, 200ms)")

// Config holds process-level simulator settings.
type Config struct {
	Scenario    string
	Tick        time.Duration
	Duration    time.Duration // 0 runs until game over or interrupt
	MetricsAddr string        // empty disables the /metrics endpoint
	Accelerated bool
	EnvFile     string
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Tick:        50 * time.Millisecond,
		Duration:    60 * time.Second,
		MetricsAddr: ":9090",
		EnvFile:     ".env",
	}
}

// Load resolves a Config from args. The env file named by -env-file
// (default .env) is read first when it exists; variables already present in
// the environment are never overwritten by it. Flags set explicitly win.
func Load(args []string) (Config, error) {
	cfg := Default()

	fset := flag.NewFlagSet("simulator", flag.ContinueOnError)
	scenario := fset.String("scenario", "", "path to a scenario YAML file")
	tick := fset.Duration("tick", 0, "simulated time per world tick")
	duration := fset.Duration("duration", 0, "total simulated duration (0 = until game over)")
	accelerated := fset.Bool("accelerated", false, "run as fast as possible instead of real time")
	metricsAddr := fset.String("metrics-addr", "", "address for the Prometheus /metrics endpoint")
	envFile := fset.String("env-file", cfg.EnvFile, "optional dotenv file")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.EnvFile = *envFile

	if err := loadEnvFile(cfg.EnvFile); err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scenario":
			cfg.Scenario = *scenario
		case "tick":
			cfg.Tick = *tick
		case "duration":
			cfg.Duration = *duration
		case "accelerated":
			cfg.Accelerated = *accelerated
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	if c.Tick <= 0 || c.Tick >= 200*time.Millisecond {
		return fmt.Errorf("%w: got %s", ErrInvalidTick, c.Tick)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative: got %s", c.Duration)
	}
	return nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvScenario); ok {
		c.Scenario = v
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		c.MetricsAddr = v
	}
	if v, ok := os.LookupEnv(EnvTick); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvTick, err)
		}
		c.Tick = d
	}
	if v, ok := os.LookupEnv(EnvDuration); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvDuration, err)
		}
		c.Duration = d
	}
	if v, ok := os.LookupEnv(EnvAccelerated); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvAccelerated, err)
		}
		c.Accelerated = b
	}
	return nil
}
