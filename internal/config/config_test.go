package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv unsets all config env vars so tests start clean.
func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"ENABLE_POLL",
		"ENABLE_MCP",
		"DEXCOM_CLIENT_ID",
		"DEXCOM_CLIENT_SECRET",
		"DEXCOM_REDIRECT_URI",
		"DEXCOM_API_URL",
		"POLL_INTERVAL",
		"LOOKBACK_DAYS",
		"STATE_PASSPHRASE",
		"STATE_PATH",
		"TARGETS_FILE",
		"ENVIRONMENT",
		"MCP_LISTEN_ADDR",
		"MCP_API_KEYS",
		"MCP_LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// setPollEnv sets the minimum env vars for poll mode.
func setPollEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENABLE_POLL", "true")
	t.Setenv("DEXCOM_CLIENT_ID", "test-client-id")
	t.Setenv("DEXCOM_CLIENT_SECRET", "test-secret")
	t.Setenv("DEXCOM_REDIRECT_URI", "https://example.com/callback")
	t.Setenv("STATE_PASSPHRASE", "correct horse battery staple")
	t.Setenv("STATE_PATH", filepath.Join(t.TempDir(), "state.db"))
}

// --- Load: poll mode ---

func TestLoad_PollMode(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.EnablePoll)
	assert.False(t, cfg.EnableMCP)
	assert.Equal(t, "test-client-id", cfg.ClientID)
	assert.Equal(t, "test-secret", cfg.ClientSecret)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval) // default
	assert.Equal(t, 1, cfg.LookbackDays)             // default
}

func TestLoad_DefaultAPIURLIsSandbox(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox-api.dexcom.com", cfg.APIURL)
}

func TestLoad_MissingClientID(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)
	os.Unsetenv("DEXCOM_CLIENT_ID")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEXCOM_CLIENT_ID")
}

func TestLoad_MissingClientSecret(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)
	os.Unsetenv("DEXCOM_CLIENT_SECRET")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEXCOM_CLIENT_SECRET")
}

func TestLoad_MissingRedirectURI(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)
	os.Unsetenv("DEXCOM_REDIRECT_URI")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEXCOM_REDIRECT_URI")
}

func TestLoad_MissingStatePassphrase(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)
	os.Unsetenv("STATE_PASSPHRASE")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATE_PASSPHRASE")
}

func TestLoad_PollIntervalTooShort(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)
	t.Setenv("POLL_INTERVAL", "10s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_INTERVAL")
}

func TestLoad_LookbackDaysOutOfRange(t *testing.T) {
	clearConfigEnv(t)

	for _, days := range []string{"0", "-3", "400"} {
		setPollEnv(t)
		t.Setenv("LOOKBACK_DAYS", days)

		_, err := Load()
		require.Error(t, err, "days %s", days)
		assert.Contains(t, err.Error(), "LOOKBACK_DAYS")
	}
}

// --- Load: MCP mode ---

func TestLoad_MCPMode(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)
	t.Setenv("ENABLE_POLL", "false")
	t.Setenv("ENABLE_MCP", "true")
	t.Setenv("MCP_API_KEYS", "alex:ds_0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.EnablePoll)
	assert.True(t, cfg.EnableMCP)
	assert.Equal(t, ":8090", cfg.MCPListenAddr) // default
}

func TestLoad_MCPMode_MissingAPIKeys(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)
	t.Setenv("ENABLE_POLL", "false")
	t.Setenv("ENABLE_MCP", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCP_API_KEYS")
}

// --- Load: neither mode ---

func TestLoad_NeitherMode(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)
	t.Setenv("ENABLE_POLL", "false")
	t.Setenv("ENABLE_MCP", "false")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one")
}

// --- Defaults and paths ---

func TestLoad_DefaultEnvironment(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoad_ResolvesRelativeTargetsFile(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)
	t.Setenv("TARGETS_FILE", "relative/targets.yaml")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.TargetsFile), "TargetsFile should be absolute, got: %s", cfg.TargetsFile)
	assert.Contains(t, cfg.TargetsFile, "relative/targets.yaml")
}

func TestDefaultStatePath(t *testing.T) {
	path, err := DefaultStatePath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Contains(t, path, filepath.Join(".dexcom-sync", "state.db"))
}

func TestLoad_DefaultsStatePath(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)
	os.Unsetenv("STATE_PATH")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.StatePath, ".dexcom-sync")
}

// --- Provider ---

func TestProvider(t *testing.T) {
	clearConfigEnv(t)
	setPollEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Provider()
	assert.Equal(t, "test-client-id", p.ClientID)
	assert.Equal(t, "test-secret", p.ClientSecret)
	assert.Equal(t, "https://example.com/callback", p.RedirectURI)
	assert.Equal(t, "https://sandbox-api.dexcom.com", p.APIURL)
}

// --- IsProduction ---

func TestIsProduction_True(t *testing.T) {
	cfg := &Config{Environment: "production"}
	assert.True(t, cfg.IsProduction())
}

func TestIsProduction_False(t *testing.T) {
	cfg := &Config{Environment: "development"}
	assert.False(t, cfg.IsProduction())
}

// --- ParseMCPAPIKeys ---

func TestParseMCPAPIKeys_Valid(t *testing.T) {
	cfg := &Config{MCPAPIKeys: "alex:ds_0123456789abcdef0123456789abcdef,bob:ds_ffffffffffffffffffffffffffffffff"}
	entries, err := cfg.ParseMCPAPIKeys()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alex", entries[0].UserID)
	assert.Equal(t, "ds_0123456789abcdef0123456789abcdef", entries[0].Key)
	assert.Equal(t, "bob", entries[1].UserID)
}

func TestParseMCPAPIKeys_Empty(t *testing.T) {
	cfg := &Config{MCPAPIKeys: ""}
	entries, err := cfg.ParseMCPAPIKeys()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseMCPAPIKeys_MissingColon(t *testing.T) {
	cfg := &Config{MCPAPIKeys: "invalidentry"}
	_, err := cfg.ParseMCPAPIKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing ':'")
}

func TestParseMCPAPIKeys_MissingPrefix(t *testing.T) {
	cfg := &Config{MCPAPIKeys: "alex:0123456789abcdef0123456789abcdef"}
	_, err := cfg.ParseMCPAPIKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefix")
}

func TestParseMCPAPIKeys_TooShort(t *testing.T) {
	cfg := &Config{MCPAPIKeys: "alex:ds_abcdef"}
	_, err := cfg.ParseMCPAPIKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestParseMCPAPIKeys_NonHexSuffix(t *testing.T) {
	cfg := &Config{MCPAPIKeys: "alex:ds_zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"}
	_, err := cfg.ParseMCPAPIKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-hex")
}

func TestParseMCPAPIKeys_DuplicateUser(t *testing.T) {
	cfg := &Config{MCPAPIKeys: "alex:ds_0123456789abcdef0123456789abcdef,alex:ds_ffffffffffffffffffffffffffffffff"}
	_, err := cfg.ParseMCPAPIKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
