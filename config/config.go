/*
config.go - Layered server configuration

PURPOSE:
  Collects every tunable of the server in one struct and resolves it from
  several sources.

PRECEDENCE (later wins):
  1. Defaults()
  2. TOML file passed to Load (optional)
  3. .env in the working directory (optional, never overrides real env)
  4. SLOT_* environment variables
  5. Command-line flags (applied by cmd/server)

EXAMPLE FILE:
  [server]
  port = 8080
  cors_origins = ["http://localhost:5173"]

  [database]
  path = "./data/slots.db"

  [auth]
  jwt_secret = "change-me"
  token_ttl = "2h"

  [tokens]
  max = 1000
  default = 50

  [log]
  level = "debug"
  format = "json"

SEE ALSO:
  - cmd/server/main.go: Flag overrides
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// TYPES
// =============================================================================

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Auth      AuthConfig      `toml:"auth"`
	Tokens    TokensConfig    `toml:"tokens"`
	Log       LogConfig       `toml:"log"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Admin     AdminConfig     `toml:"admin"`
	DevMode   bool            `toml:"dev_mode"`
}

type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	JWTSecret      string   `toml:"jwt_secret"`
	PrivateKeyPath string   `toml:"private_key_path"`
	PublicKeyPath  string   `toml:"public_key_path"`
	TokenTTL       Duration `toml:"token_ttl"`
}

type TokensConfig struct {
	Max                int `toml:"max"`
	Default            int `toml:"default"`
	DefaultCostPerHour int `toml:"default_cost_per_hour"`
	UnusedPenalty      int `toml:"unused_penalty"`
	PartialPenalty     int `toml:"partial_penalty"`
}

type LogConfig struct {
	Level  slog.Level `toml:"level"`
	Format string     `toml:"format"`
}

type RateLimitConfig struct {
	LoginPerSecond float64 `toml:"login_per_second"`
	LoginBurst     int     `toml:"login_burst"`
}

// AdminConfig bootstraps an admin account at startup when Username and
// Password are both set.
type AdminConfig struct {
	Username string `toml:"username"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

func (a AdminConfig) Enabled() bool {
	return a.Username != "" && a.Password != ""
}

// Duration reads Go duration strings ("90m", "2h") from TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// =============================================================================
// LOADING
// =============================================================================

func Defaults() Config {
	p := booking.DefaultPolicy()
	return Config{
		Server:   ServerConfig{Port: 8080, CORSOrigins: []string{"*"}},
		Database: DatabaseConfig{Path: "./data/slots.db"},
		Auth:     AuthConfig{TokenTTL: Duration(time.Hour)},
		Tokens: TokensConfig{
			Max:                p.MaxTokens,
			Default:            p.DefaultTokens,
			DefaultCostPerHour: p.DefaultTokenCostPerHour,
			UnusedPenalty:      p.UnusedDeletionPenalty,
			PartialPenalty:     p.PartialUseDeletionPenalty,
		},
		Log:       LogConfig{Level: slog.LevelInfo, Format: "text"},
		RateLimit: RateLimitConfig{LoginPerSecond: 1, LoginBurst: 5},
	}
}

// Load resolves the configuration. path may be empty; a missing .env is
// not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to open config: %w", err)
		}
		defer file.Close()
		if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overlays SLOT_* variables. lookup is os.LookupEnv outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	num("SLOT_PORT", &c.Server.Port)
	if v, ok := lookup("SLOT_CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	str("SLOT_DB_PATH", &c.Database.Path)

	str("SLOT_JWT_SECRET", &c.Auth.JWTSecret)
	str("SLOT_JWT_PRIVATE_KEY_PATH", &c.Auth.PrivateKeyPath)
	str("SLOT_JWT_PUBLIC_KEY_PATH", &c.Auth.PublicKeyPath)
	if v, ok := lookup("SLOT_TOKEN_TTL"); ok {
		if err := c.Auth.TokenTTL.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("SLOT_TOKEN_TTL: %w", err))
		}
	}

	num("SLOT_MAX_TOKENS", &c.Tokens.Max)
	num("SLOT_DEFAULT_TOKENS", &c.Tokens.Default)
	num("SLOT_DEFAULT_COST_PER_HOUR", &c.Tokens.DefaultCostPerHour)
	num("SLOT_UNUSED_PENALTY", &c.Tokens.UnusedPenalty)
	num("SLOT_PARTIAL_PENALTY", &c.Tokens.PartialPenalty)

	if v, ok := lookup("SLOT_LOG_LEVEL"); ok {
		if err := c.Log.Level.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("SLOT_LOG_LEVEL: %w", err))
		}
	}
	str("SLOT_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("SLOT_DEV_MODE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SLOT_DEV_MODE: %w", err))
		}
		c.DevMode = b
	}

	str("SLOT_ADMIN_USERNAME", &c.Admin.Username)
	str("SLOT_ADMIN_EMAIL", &c.Admin.Email)
	str("SLOT_ADMIN_PASSWORD", &c.Admin.Password)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Tokens.Max <= 0 {
		errs = append(errs, errors.New("tokens.max must be positive"))
	}
	if c.Tokens.Default < 0 || c.Tokens.Default > c.Tokens.Max {
		errs = append(errs, fmt.Errorf("tokens.default must be within [0, %d]", c.Tokens.Max))
	}
	if c.Tokens.DefaultCostPerHour <= 0 {
		errs = append(errs, errors.New("tokens.default_cost_per_hour must be positive"))
	}
	if c.Tokens.UnusedPenalty < 0 || c.Tokens.PartialPenalty < 0 {
		errs = append(errs, errors.New("penalties cannot be negative"))
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", f))
	}
	return errors.Join(errs...)
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

func (c Config) Policy() booking.Policy {
	return booking.Policy{
		MaxTokens:                 c.Tokens.Max,
		DefaultTokens:             c.Tokens.Default,
		DefaultTokenCostPerHour:   c.Tokens.DefaultCostPerHour,
		UnusedDeletionPenalty:     c.Tokens.UnusedPenalty,
		PartialUseDeletionPenalty: c.Tokens.PartialPenalty,
	}
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTL)
}

// Logger builds the process logger described by the log section.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Log.Level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
