// Package config loads diceroll settings from the environment.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/roach88/diceroll/internal/dice"
	"github.com/roach88/diceroll/internal/logging"
)

// Randomness sources selectable with DICEROLL_SOURCE.
const (
	SourceCrypto    = "crypto"
	SourceSeeded    = "seeded"
	SourceCommitted = "committed"
)

// Config holds process-wide settings. Command-line flags override fields
// after Load.
type Config struct {
	DB              string        `env:"DICEROLL_DB"               envDefault:"diceroll.db"`
	Addr            string        `env:"DICEROLL_ADDR"             envDefault:":8080"`
	LogLevel        string        `env:"DICEROLL_LOG_LEVEL"        envDefault:"info"`
	LogFormat       string        `env:"DICEROLL_LOG_FORMAT"       envDefault:"console"`
	Source          string        `env:"DICEROLL_SOURCE"           envDefault:"crypto"`
	Seed            int64         `env:"DICEROLL_SEED"`
	ServerSeed      string        `env:"DICEROLL_SERVER_SEED"`
	RateLimit       float64       `env:"DICEROLL_RATE_LIMIT"       envDefault:"10"`
	RateBurst       int           `env:"DICEROLL_RATE_BURST"       envDefault:"20"`
	ProxyHeader     string        `env:"DICEROLL_PROXY_HEADER"`
	ShutdownTimeout time.Duration `env:"DICEROLL_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	Credential      string        `env:"DICEROLL_CREDENTIAL"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the given dotenv files (default ".env") into the environment,
// then parses Config. Missing dotenv files are not an error; variables
// already set in the environment win over file values.
func Load(dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field combinations that env tags cannot express.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("rate limit %.2f/s burst %d must both be positive", c.RateLimit, c.RateBurst)
	}
	_, err := c.Provider()
	return err
}

// Provider builds the dice provider selected by Source.
func (c Config) Provider() (dice.Provider, error) {
	switch c.Source {
	case "", SourceCrypto:
		return dice.Shared(dice.Crypto{}), nil
	case SourceSeeded:
		return dice.PerSession(c.Seed), nil
	case SourceCommitted:
		seed, err := c.ServerSeedBytes()
		if err != nil {
			return nil, err
		}
		return dice.NewCommitter(seed)
	default:
		return nil, fmt.Errorf("unknown source %q (want %s, %s or %s)", c.Source, SourceCrypto, SourceSeeded, SourceCommitted)
	}
}

// ServerSeedBytes decodes the hex server seed.
func (c Config) ServerSeedBytes() ([]byte, error) {
	if c.ServerSeed == "" {
		return nil, errors.New("DICEROLL_SERVER_SEED is required for the committed source")
	}
	seed, err := hex.DecodeString(c.ServerSeed)
	if err != nil {
		return nil, fmt.Errorf("decode server seed: %w", err)
	}
	return seed, nil
}
