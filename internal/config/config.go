package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// Config is the process configuration read from the environment.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr    string `env:"GRPC_ADDR"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	// RequestTimeout bounds every store call made on behalf of one HTTP or gRPC request.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	JWTSecret        string `env:"JWT_SECRET"`
	JWTIssuer        string `env:"JWT_ISSUER" envDefault:"landing-builder"`
	AccessMinutes    int    `env:"JWT_ACCESS_MINUTES" envDefault:"15"`
	RefreshDays      int    `env:"JWT_REFRESH_DAYS" envDefault:"30"`
	MagicLinkMinutes int    `env:"MAGIC_LINK_MINUTES" envDefault:"15"`
	InviteMinutes    int    `env:"INVITE_MINUTES" envDefault:"10080"`
	ReuseRevokes     bool   `env:"REFRESH_REUSE_REVOKES" envDefault:"true"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`
	GoogleJWKSURL  string `env:"GOOGLE_JWKS_URL"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

// Load reads an optional .env file from the working directory, then the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return Parse(env.Options{})
}

// Parse reads Config with opts, e.g. an explicit Environment map in tests.
func Parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.GoogleClientID != "" && cfg.GoogleJWKSURL == "" {
		cfg.GoogleJWKSURL = defaultGoogleJWKSURL
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that have no usable default.
func (c Config) Validate() error {
	var problems []string
	if len(c.JWTSecret) < 32 {
		problems = append(problems, "JWT_SECRET must be at least 32 bytes")
	}
	if strings.TrimSpace(c.JWTIssuer) == "" {
		problems = append(problems, "JWT_ISSUER must not be empty")
	}
	for _, p := range []struct {
		name  string
		value int
	}{
		{"JWT_ACCESS_MINUTES", c.AccessMinutes},
		{"JWT_REFRESH_DAYS", c.RefreshDays},
		{"MAGIC_LINK_MINUTES", c.MagicLinkMinutes},
		{"INVITE_MINUTES", c.InviteMinutes},
	} {
		if p.value <= 0 {
			problems = append(problems, p.name+" must be positive")
		}
	}
	if c.AccessMinutes > 0 && c.RefreshDays > 0 && c.AccessTTL() >= c.RefreshTTL() {
		problems = append(problems, "JWT_ACCESS_MINUTES must be shorter than JWT_REFRESH_DAYS")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		problems = append(problems, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "REQUEST_TIMEOUT must be positive")
	}
	if c.HTTPAddr == "" {
		problems = append(problems, "HTTP_ADDR must not be empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) AccessTTL() time.Duration    { return time.Duration(c.AccessMinutes) * time.Minute }
func (c Config) RefreshTTL() time.Duration   { return time.Duration(c.RefreshDays) * 24 * time.Hour }
func (c Config) MagicLinkTTL() time.Duration { return time.Duration(c.MagicLinkMinutes) * time.Minute }
func (c Config) InviteTTL() time.Duration    { return time.Duration(c.InviteMinutes) * time.Minute }

// GoogleEnabled reports whether third-party login is configured.
func (c Config) GoogleEnabled() bool { return c.GoogleClientID != "" }
