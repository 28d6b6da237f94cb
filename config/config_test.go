package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/slot-engine/booking"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slot-engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults_MatchBookingPolicy(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, booking.DefaultPolicy(), cfg.Policy())
	assert.Equal(t, time.Hour, cfg.TokenTTL())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
dev_mode = true

[server]
port = 9090
cors_origins = ["http://localhost:5173"]

[auth]
jwt_secret = "from-file"
token_ttl = "90m"

[tokens]
max = 500
unused_penalty = 3

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.DevMode)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL())
	assert.Equal(t, 500, cfg.Policy().MaxTokens)
	assert.Equal(t, 3, cfg.Policy().UnusedDeletionPenalty)
	assert.Equal(t, booking.DefaultPartialUseDeletionPenalty, cfg.Policy().PartialUseDeletionPenalty, "unset keys keep defaults")
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, "./data/slots.db", cfg.Database.Path)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, `
[server]
port = 9090
`)
	t.Setenv("SLOT_PORT", "7070")
	t.Setenv("SLOT_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, `unknown_key = 1`))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "[tokens]\nmax = 10\ndefault = 50\n"))
	assert.ErrorContains(t, err, "tokens.default")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SLOT_CORS_ORIGINS":        "https://a.example, https://b.example,",
		"SLOT_DEV_MODE":            "true",
		"SLOT_TOKEN_TTL":           "15m",
		"SLOT_LOG_LEVEL":           "warn",
		"SLOT_DEFAULT_TOKENS":      "20",
		"SLOT_ADMIN_USERNAME":      "root",
		"SLOT_ADMIN_PASSWORD":      "hunter22",
		"SLOT_PARTIAL_PENALTY":     "0",
		"SLOT_DB_PATH":             ":memory:",
		"SLOT_JWT_PUBLIC_KEY_PATH": "/keys/pub.pem",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Defaults()
	require.NoError(t, cfg.applyEnv(lookup))

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL())
	assert.Equal(t, slog.LevelWarn, cfg.Log.Level)
	assert.Equal(t, 20, cfg.Tokens.Default)
	assert.Equal(t, 0, cfg.Tokens.PartialPenalty)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "/keys/pub.pem", cfg.Auth.PublicKeyPath)
	assert.True(t, cfg.Admin.Enabled())
}

func TestApplyEnv_ReportsEveryBadValue(t *testing.T) {
	env := map[string]string{
		"SLOT_PORT":      "eighty",
		"SLOT_TOKEN_TTL": "forever",
		"SLOT_DEV_MODE":  "maybe",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Defaults()
	err := cfg.applyEnv(lookup)
	require.Error(t, err)
	for key := range env {
		assert.ErrorContains(t, err, key)
	}
}
