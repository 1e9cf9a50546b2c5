package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/alexjbarnes/dashboard-bff/internal/tokenstore"
)

// Config holds all environment-based configuration for dashboard-bff.
type Config struct {
	// Environment controls log format and cookie security.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`

	// ListenAddr is the HTTP listen address. PORT, when set by a hosting
	// platform, takes precedence as ":$PORT".
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":3000"`
	Port       string `env:"PORT"`

	// Spotify application credentials (required).
	ClientID     string `env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`

	RedirectURI string `env:"SPOTIFY_REDIRECT_URI" envDefault:"http://localhost:3000/spotify/auth/callback"`

	// Scopes requested at login, space separated. Empty uses the
	// dashboard defaults.
	Scopes []string `env:"SPOTIFY_SCOPES" envSeparator:" "`

	// Service base URLs, overridable for testing against fakes.
	AccountsURL string `env:"SPOTIFY_ACCOUNTS_URL" envDefault:"https://accounts.spotify.com"`
	APIURL      string `env:"SPOTIFY_API_URL" envDefault:"https://api.spotify.com/v1"`

	// FrontendURL receives the browser after the login callback.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:4202/home"`

	// Token persistence. Backend only applies to long-running hosts;
	// serverless platforms are detected and pick their own tier.
	TokenBackend   string `env:"TOKEN_BACKEND" envDefault:"file"`
	TokenFile      string `env:"TOKEN_FILE" envDefault:"spotify-tokens.json"`
	TokenDB        string `env:"TOKEN_DB" envDefault:"spotify-tokens.db"`
	TokenEnvKey    string `env:"TOKEN_ENV_KEY" envDefault:"SPOTIFY_TOKEN_DATA"`
	KeyringService string `env:"TOKEN_KEYRING_SERVICE" envDefault:"dashboard-bff"`

	// Background refresh policy.
	RefreshInterval  time.Duration `env:"TOKEN_REFRESH_INTERVAL" envDefault:"60s"`
	RefreshThreshold time.Duration `env:"TOKEN_REFRESH_THRESHOLD" envDefault:"30m"`
	RefreshCeiling   time.Duration `env:"TOKEN_REFRESH_CEILING" envDefault:"50m"`

	// Timezone is the IANA zone working hours are evaluated in. Empty
	// uses the host zone.
	Timezone string `env:"DASHBOARD_TIMEZONE"`
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

	if cfg.Port != "" {
		cfg.ListenAddr = ":" + cfg.Port
	}

	cfg.AccountsURL = strings.TrimRight(cfg.AccountsURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("SPOTIFY_CLIENT_ID is required")
	}

	if c.ClientSecret == "" {
		return fmt.Errorf("SPOTIFY_CLIENT_SECRET is required")
	}

	for name, raw := range map[string]string{
		"SPOTIFY_REDIRECT_URI": c.RedirectURI,
		"SPOTIFY_ACCOUNTS_URL": c.AccountsURL,
		"SPOTIFY_API_URL":      c.APIURL,
		"FRONTEND_URL":         c.FrontendURL,
	} {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if !slices.Contains(tokenstore.Backends, c.TokenBackend) {
		return fmt.Errorf("TOKEN_BACKEND must be one of %s, got %q", strings.Join(tokenstore.Backends, ", "), c.TokenBackend)
	}

	if c.TokenEnvKey == "" {
		return fmt.Errorf("TOKEN_ENV_KEY must not be empty")
	}

	if c.RefreshInterval <= 0 {
		return fmt.Errorf("TOKEN_REFRESH_INTERVAL must be positive")
	}

	if c.RefreshThreshold <= 0 {
		return fmt.Errorf("TOKEN_REFRESH_THRESHOLD must be positive")
	}

	if c.RefreshCeiling <= 0 {
		return fmt.Errorf("TOKEN_REFRESH_CEILING must be positive")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("DASHBOARD_TIMEZONE: %w", err)
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must be http or https, got %q", raw)
	}

	if u.Host == "" {
		return fmt.Errorf("URL has no host: %q", raw)
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AuthURL is the consent page on the accounts service.
func (c *Config) AuthURL() string {
	return c.AccountsURL + "/authorize"
}

// Location is the zone working hours are evaluated in.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}

	return loc
}

// TokenURL is the token endpoint on the accounts service.
func (c *Config) TokenURL() string {
	return c.AccountsURL + "/api/token"
}
