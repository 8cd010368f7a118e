package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/ucenter-gateway/internal/flagx"
	"github.com/dmitrijs2005/ucenter-gateway/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer fields
// distinguish "absent" from zero values so the file only overrides what it names.
type JsonConfig struct {
	Mode            *string         `json:"mode"`
	BaseURL         *string         `json:"base_url"`
	AppID           *string         `json:"app_id"`
	AppSecret       *string         `json:"app_secret"`
	HTTPTimeout     *timex.Duration `json:"http_timeout"`
	DatabaseDSN     *string         `json:"database_dsn"`
	BindingsEnabled *bool           `json:"bindings_enabled"`
	EmailDomain     *string         `json:"email_domain"`
	SystemUID       *int64          `json:"system_uid"`
	SessionSecret   *string         `json:"session_secret"`
	SessionTTL      *timex.Duration `json:"session_ttl"`
	SessionIssuer   *string         `json:"session_issuer"`
	SessionAudience *string         `json:"session_audience"`
	ListenAddr      *string         `json:"listen_addr"`
	LogLevel        *string         `json:"log_level"`
	LogFormat       *string         `json:"log_format"`
}

// parseJson loads the file named by -c/-config in args, if any, into config.
// It panics when the file cannot be read or decoded.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.Mode, c.Mode)
	setString(&config.BaseURL, c.BaseURL)
	setString(&config.AppID, c.AppID)
	setString(&config.AppSecret, c.AppSecret)
	if c.HTTPTimeout != nil {
		config.HTTPTimeout = c.HTTPTimeout.Duration
	}
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	if c.BindingsEnabled != nil {
		config.BindingsEnabled = *c.BindingsEnabled
	}
	setString(&config.EmailDomain, c.EmailDomain)
	if c.SystemUID != nil {
		config.SystemUID = *c.SystemUID
	}
	setString(&config.SessionSecret, c.SessionSecret)
	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	setString(&config.SessionIssuer, c.SessionIssuer)
	setString(&config.SessionAudience, c.SessionAudience)
	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
