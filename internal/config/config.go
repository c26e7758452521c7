// Package config loads environment-based configuration for dexcom-sync.
package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/alexjbarnes/dexcom-sync/internal/dexcom"
	"github.com/alexjbarnes/dexcom-sync/internal/server"
)

const (
	// minPollInterval guards against hammering the provider. Dexcom
	// publishes new glucose values every five minutes; polling faster
	// than once a minute buys nothing.
	minPollInterval = time.Minute

	// maxLookbackDays caps the backfill window. Longer windows are
	// chunked automatically, but a year of five-minute readings is
	// already ~105k records per backfill.
	maxLookbackDays = 365
)

// Config holds all environment-based configuration for dexcom-sync.
type Config struct {
	// Service flags. At least one must be true.
	EnablePoll bool `env:"ENABLE_POLL" envDefault:"true"`
	EnableMCP  bool `env:"ENABLE_MCP" envDefault:"false"`

	// Dexcom application credentials (always required).
	ClientID     string `env:"DEXCOM_CLIENT_ID"`
	ClientSecret string `env:"DEXCOM_CLIENT_SECRET"`
	RedirectURI  string `env:"DEXCOM_REDIRECT_URI"`

	// API base URL. Defaults to the sandbox environment, where
	// authorization codes are fixed sentinel values.
	APIURL string `env:"DEXCOM_API_URL" envDefault:"https://sandbox-api.dexcom.com"`

	// Poller settings.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5m"`
	LookbackDays int           `env:"LOOKBACK_DAYS" envDefault:"1"`

	// Passphrase protecting the token envelope at rest (required).
	StatePassphrase string `env:"STATE_PASSPHRASE"`

	// State database location. Defaults to ~/.dexcom-sync/state.db.
	StatePath string `env:"STATE_PATH"`

	// Optional YAML file overriding the statistics target ranges.
	TargetsFile string `env:"TARGETS_FILE"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// MCP server settings (required when MCP is enabled)
	MCPListenAddr string `env:"MCP_LISTEN_ADDR" envDefault:":8090"`
	MCPAPIKeys    string `env:"MCP_API_KEYS"`
	MCPLogLevel   string `env:"MCP_LOG_LEVEL" envDefault:"info"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.StatePath == "" {
		path, err := DefaultStatePath()
		if err != nil {
			return nil, err
		}

		cfg.StatePath = path
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Resolve TargetsFile to an absolute path at startup so the
	// hot-reload watcher can watch its parent directory reliably.
	if cfg.TargetsFile != "" {
		abs, err := filepath.Abs(cfg.TargetsFile)
		if err != nil {
			return nil, fmt.Errorf("resolving targets file to absolute path: %w", err)
		}

		cfg.TargetsFile = abs
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !c.EnablePoll && !c.EnableMCP {
		return fmt.Errorf("at least one of ENABLE_POLL or ENABLE_MCP must be true")
	}

	if c.ClientID == "" {
		return fmt.Errorf("DEXCOM_CLIENT_ID is required")
	}

	if c.ClientSecret == "" {
		return fmt.Errorf("DEXCOM_CLIENT_SECRET is required")
	}

	if c.RedirectURI == "" {
		return fmt.Errorf("DEXCOM_REDIRECT_URI is required")
	}

	// Both modes persist token envelopes; the passphrase protects
	// them at rest and is therefore always required.
	if c.StatePassphrase == "" {
		return fmt.Errorf("STATE_PASSPHRASE is required")
	}

	if c.EnablePoll {
		if c.PollInterval < minPollInterval {
			return fmt.Errorf("POLL_INTERVAL must be at least %s", minPollInterval)
		}

		if c.LookbackDays < 1 || c.LookbackDays > maxLookbackDays {
			return fmt.Errorf("LOOKBACK_DAYS must be between 1 and %d", maxLookbackDays)
		}
	}

	if c.EnableMCP && c.MCPAPIKeys == "" {
		return fmt.Errorf("MCP_API_KEYS is required when MCP is enabled")
	}

	return nil
}

// Provider returns the application identity in the shape the API
// client takes. Identity fields are validated again by dexcom.NewClient
// against the provider's length constraints.
func (c *Config) Provider() dexcom.Config {
	return dexcom.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
		APIURL:       c.APIURL,
	}
}

// DefaultStatePath returns the default state database location:
// ~/.dexcom-sync/state.db
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".dexcom-sync", "state.db"), nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// APIKeyEntry holds a pre-configured API key and its associated user
// identity parsed from MCP_API_KEYS.
type APIKeyEntry struct {
	UserID string
	Key    string
}

// ParseMCPAPIKeys parses the MCP_API_KEYS string.
// Format: "user1:ds_key1,user2:ds_key2"
func (c *Config) ParseMCPAPIKeys() ([]APIKeyEntry, error) {
	if c.MCPAPIKeys == "" {
		return nil, nil
	}

	seenUsers := make(map[string]struct{})

	var entries []APIKeyEntry

	for _, pair := range strings.Split(c.MCPAPIKeys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		idx := strings.Index(pair, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid API key entry (missing ':')")
		}

		userID := pair[:idx]

		key := pair[idx+1:]
		if userID == "" || key == "" {
			return nil, fmt.Errorf("empty user or key in entry %d", len(entries)+1)
		}

		if !strings.HasPrefix(key, server.APIKeyPrefix) {
			return nil, fmt.Errorf("API key must start with %q prefix in entry %d", server.APIKeyPrefix, len(entries)+1)
		}

		if len(key) < server.APIKeyMinLen {
			return nil, fmt.Errorf("API key too short in entry %d (minimum %d characters)", len(entries)+1, server.APIKeyMinLen)
		}

		suffix := key[len(server.APIKeyPrefix):]
		if _, err := hex.DecodeString(suffix); err != nil {
			return nil, fmt.Errorf("API key contains non-hex characters after %q prefix in entry %d", server.APIKeyPrefix, len(entries)+1)
		}

		if _, dup := seenUsers[userID]; dup {
			return nil, fmt.Errorf("duplicate user_id %q in MCP_API_KEYS", userID)
		}

		seenUsers[userID] = struct{}{}
		entries = append(entries, APIKeyEntry{UserID: userID, Key: key})
	}

	return entries, nil
}
