// Package config assembles the gateway configuration from defaults, an
// optional JSON file, UCENTER_* environment variables and command-line flags,
// applied in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	ModeRemote = "remote"
	ModeLocal  = "local"
)

// Config holds runtime settings for the gateway binaries.
//
// Mode selects the backend: "remote" signs calls to BaseURL with AppID and
// AppSecret, "local" executes the four account operations against
// DatabaseDSN. Bindings are stored in DatabaseDSN when BindingsEnabled is set.
type Config struct {
	Mode        string        `env:"UCENTER_MODE"`
	BaseURL     string        `env:"UCENTER_BASE_URL"`
	AppID       string        `env:"UCENTER_APP_ID"`
	AppSecret   string        `env:"UCENTER_APP_SECRET"`
	HTTPTimeout time.Duration `env:"UCENTER_HTTP_TIMEOUT"`

	DatabaseDSN     string `env:"UCENTER_DATABASE_DSN"`
	BindingsEnabled bool   `env:"UCENTER_BINDINGS_ENABLED"`

	EmailDomain string `env:"UCENTER_EMAIL_DOMAIN"`
	SystemUID   int64  `env:"UCENTER_SYSTEM_UID"`

	SessionSecret   string        `env:"UCENTER_SESSION_SECRET"`
	SessionTTL      time.Duration `env:"UCENTER_SESSION_TTL"`
	SessionIssuer   string        `env:"UCENTER_SESSION_ISSUER"`
	SessionAudience string        `env:"UCENTER_SESSION_AUDIENCE"`

	ListenAddr string `env:"UCENTER_LISTEN_ADDR"`
	LogLevel   string `env:"UCENTER_LOG_LEVEL"`
	LogFormat  string `env:"UCENTER_LOG_FORMAT"`
}

// LoadDefaults fills c with development defaults.
// NOTE: the secrets below are placeholders and must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.Mode = ModeRemote
	c.BaseURL = "http://127.0.0.1:8080"
	c.AppID = "1"
	c.AppSecret = "appsecret"
	c.HTTPTimeout = 10 * time.Second
	c.DatabaseDSN = ""
	c.BindingsEnabled = false
	c.EmailDomain = "jiuzhoufeiyi.com"
	c.SystemUID = 1
	c.SessionSecret = "sessionsecret"
	c.SessionTTL = 2 * time.Hour
	c.SessionIssuer = ""
	c.SessionAudience = ""
	c.ListenAddr = ":8090"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Validate reports settings that are missing or inconsistent for c.Mode.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModeRemote:
		if c.BaseURL == "" {
			errs = append(errs, errors.New("base url is required in remote mode"))
		}
		if c.AppID == "" {
			errs = append(errs, errors.New("app id is required in remote mode"))
		}
		if c.AppSecret == "" {
			errs = append(errs, errors.New("app secret is required in remote mode"))
		}
	case ModeLocal:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("database dsn is required in local mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}

	if c.BindingsEnabled && c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required when bindings are enabled"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("session secret is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, errors.New("http timeout must not be negative"))
	}

	return errors.Join(errs...)
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config, then the environment, then flags. It panics on unreadable
// input, like the rest of process bootstrap.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, os.Args[1:])
	if err := parseEnv(cfg); err != nil {
		panic(err)
	}
	parseFlags(cfg, os.Args[1:])
	return cfg
}
