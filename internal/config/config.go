// Package config defines the service configuration and its YAML loader.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the assistant.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Odoo     OdooConfig     `yaml:"odoo"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServerConfig configures the HTTP listener and static file serving.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// StaticDir holds downloaded product images and quotation PDFs,
	// served under /static/.
	StaticDir string `yaml:"static_dir"`
	// PublicBaseURL is the externally reachable base URL used when
	// building links to static assets.
	PublicBaseURL string `yaml:"public_base_url"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OpenAIConfig configures the reasoning model boundary.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// ReasoningEffort is passed through for reasoning-capable models
	// ("low", "medium", "high"); empty omits it.
	ReasoningEffort string `yaml:"reasoning_effort"`
}

// OdooConfig configures the ERP client.
type OdooConfig struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// TokenRenewalBuffer renews the OAuth token this long before expiry.
	TokenRenewalBuffer time.Duration `yaml:"token_renewal_buffer"`
}

// WhatsAppConfig configures the Meta Cloud API channel.
type WhatsAppConfig struct {
	Token         string `yaml:"token"`
	PhoneNumberID string `yaml:"phone_number_id"`
	VerifyToken   string `yaml:"verify_token"`
	APIVersion    string `yaml:"api_version"`
	// WordsLimit splits outbound answers longer than this many words
	// into separate sends, breaking at newlines.
	WordsLimit int `yaml:"words_limit"`
}

// SMTPConfig configures outgoing mail for lead and order notices.
type SMTPConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	From       string `yaml:"from"`
	AdminEmail string `yaml:"admin_email"`
	// Production restricts copies of customer notices to AdminEmail
	// when false.
	Production bool `yaml:"production"`
}

// DatabaseConfig configures persistence.
type DatabaseConfig struct {
	// Path is the SQLite file for the conversation history sink.
	// Empty disables persistence.
	Path string `yaml:"path"`
	// PostgresDSN connects the read-only SQL tool to the ERP replica.
	// Empty disables the tool.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// SessionConfig configures session lifecycle and the reasoning loop.
type SessionConfig struct {
	// TTL evicts sessions idle longer than this.
	TTL time.Duration `yaml:"ttl"`
	// CleanupInterval is the cadence of the janitor pass.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// MaxIterations bounds model round trips within one turn.
	MaxIterations int `yaml:"max_iterations"`
}

// NotifyConfig configures the best-effort background dispatcher.
type NotifyConfig struct {
	QueueSize int `yaml:"queue_size"`
	Workers   int `yaml:"workers"`
}

// DefaultConfig returns a configuration with production defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8080,
			StaticDir: "static",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-5",
		},
		Odoo: OdooConfig{
			TokenRenewalBuffer: 300 * time.Second,
		},
		WhatsApp: WhatsAppConfig{
			APIVersion: "v22.0",
			WordsLimit: 1500,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Session: SessionConfig{
			TTL:             24 * time.Hour,
			CleanupInterval: time.Hour,
			MaxIterations:   10,
		},
		Notify: NotifyConfig{
			QueueSize: 256,
			Workers:   4,
		},
	}
}

// applyDefaults fills zero values with the defaults.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = def.Server.StaticDir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = def.OpenAI.Model
	}
	if c.Odoo.TokenRenewalBuffer == 0 {
		c.Odoo.TokenRenewalBuffer = def.Odoo.TokenRenewalBuffer
	}
	if c.WhatsApp.APIVersion == "" {
		c.WhatsApp.APIVersion = def.WhatsApp.APIVersion
	}
	if c.WhatsApp.WordsLimit == 0 {
		c.WhatsApp.WordsLimit = def.WhatsApp.WordsLimit
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = def.SMTP.Port
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = def.Session.TTL
	}
	if c.Session.CleanupInterval == 0 {
		c.Session.CleanupInterval = def.Session.CleanupInterval
	}
	if c.Session.MaxIterations == 0 {
		c.Session.MaxIterations = def.Session.MaxIterations
	}
	if c.Notify.QueueSize == 0 {
		c.Notify.QueueSize = def.Notify.QueueSize
	}
	if c.Notify.Workers == 0 {
		c.Notify.Workers = def.Notify.Workers
	}
}

// Validate checks that the configuration can actually run the service.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.WhatsApp.Token == "" {
		return fmt.Errorf("whatsapp.token is required")
	}
	if c.WhatsApp.PhoneNumberID == "" {
		return fmt.Errorf("whatsapp.phone_number_id is required")
	}
	if c.WhatsApp.VerifyToken == "" {
		return fmt.Errorf("whatsapp.verify_token is required")
	}
	if c.Odoo.BaseURL == "" {
		return fmt.Errorf("odoo.base_url is required")
	}
	if c.Session.MaxIterations < 1 {
		return fmt.Errorf("session.max_iterations must be at least 1")
	}
	switch c.OpenAI.ReasoningEffort {
	case "", "minimal", "low", "medium", "high":
	default:
		return fmt.Errorf("openai.reasoning_effort %q not recognized", c.OpenAI.ReasoningEffort)
	}
	return nil
}
