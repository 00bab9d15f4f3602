package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding the file
const EnvPrefix = "FGMAIL_"

// Mail providers
const (
	ProviderSMTP     = "smtp"
	ProviderPostmark = "postmark"
	ProviderResend   = "resend"
	ProviderSES      = "ses"
	ProviderNoop     = "noop"
)

// Delivery modes
const (
	ModeProduction = "production"
	ModeSandbox    = "sandbox"
	ModeRedirect   = "redirect"
)

// Config is the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Mail      MailConfig      `yaml:"mail"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig contains server-wide settings
type ServerConfig struct {
	Hostname string `yaml:"hostname" env:"SERVER_HOSTNAME"` // FQDN used in Message-ID and EHLO
}

// APIConfig contains HTTP API settings
type APIConfig struct {
	ListenAddr     string        `yaml:"listen_addr" env:"API_LISTEN_ADDR"`
	APIKey         string        `yaml:"api_key" env:"API_KEY"`
	APIKeyHash     string        `yaml:"api_key_hash" env:"API_KEY_HASH"` // bcrypt hash, takes precedence over api_key
	MaxHeaderBytes int           `yaml:"max_header_bytes"`                // default: 1MB
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`                  // default: 2MB
	ReadTimeout    time.Duration `yaml:"read_timeout"`                    // default: 30s
	WriteTimeout   time.Duration `yaml:"write_timeout"`                   // default: 60s
	IdleTimeout    time.Duration `yaml:"idle_timeout"`                    // default: 60s
	AllowedIPs     []string      `yaml:"allowed_ips" env:"API_ALLOWED_IPS"`
	TrustProxy     bool          `yaml:"trust_proxy" env:"API_TRUST_PROXY"` // honour X-Forwarded-For / X-Real-IP
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Path      string           `yaml:"path" env:"STORAGE_PATH"`
	Retention *RetentionConfig `yaml:"retention"`
}

// RetentionConfig contains retention settings for send reports and
// sandbox captures
type RetentionConfig struct {
	ReportMaxAge    time.Duration `yaml:"report_max_age"`  // 0 = keep forever
	SandboxMaxAge   time.Duration `yaml:"sandbox_max_age"` // 0 = keep forever
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"LOG_FORMAT"` // json, text
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled       bool          `yaml:"enabled" env:"METRICS_ENABLED"`
	ListenAddr    string        `yaml:"listen_addr" env:"METRICS_LISTEN_ADDR"` // default: :9090
	Path          string        `yaml:"path"`                                  // default: /metrics
	FlushInterval time.Duration `yaml:"flush_interval"`                        // default: 10s
	AllowedIPs    []string      `yaml:"allowed_ips"`
}

// MailConfig contains outgoing mail settings
type MailConfig struct {
	Provider    string        `yaml:"provider" env:"MAIL_PROVIDER"` // smtp, postmark, resend, ses, noop
	Mode        string        `yaml:"mode" env:"MAIL_MODE"`         // production, sandbox, redirect
	RedirectTo  []string      `yaml:"redirect_to" env:"MAIL_REDIRECT_TO"`
	FromEmail   string        `yaml:"from_email" env:"MAIL_FROM_EMAIL"`
	FromName    string        `yaml:"from_name" env:"MAIL_FROM_NAME"`
	ReplyTo     string        `yaml:"reply_to" env:"MAIL_REPLY_TO"`
	Concurrency int           `yaml:"concurrency"` // default: 4
	Timeout     time.Duration `yaml:"timeout"`     // per message, default: 30s

	MaxRetries    int           `yaml:"max_retries"`    // default: 3
	RetryInterval time.Duration `yaml:"retry_interval"` // default: 2s, doubles per attempt
	MaxRecipients int           `yaml:"max_recipients"` // per dispatch, default: 10000

	SMTP     SMTPConfig     `yaml:"smtp"`
	Postmark PostmarkConfig `yaml:"postmark"`
	Resend   ResendConfig   `yaml:"resend"`
	SES      SESConfig      `yaml:"ses"`
	DKIM     DKIMConfig     `yaml:"dkim"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
}

// SandboxConfig controls failure simulation for sandbox and redirect modes
type SandboxConfig struct {
	SimulateErrors   bool    `yaml:"simulate_errors" env:"MAIL_SANDBOX_SIMULATE_ERRORS"`
	ErrorProbability float64 `yaml:"error_probability" env:"MAIL_SANDBOX_ERROR_PROBABILITY"` // 0 = sender default (0.1)
}

// SMTPConfig contains SMTP submission settings
type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT"`         // default: 587
	Username string `yaml:"username" env:"SMTP_USERNAME"` // empty = no AUTH
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	TLS      string `yaml:"tls"` // starttls, tls, none (default: starttls)
}

// PostmarkConfig contains Postmark API tokens
type PostmarkConfig struct {
	ServerToken  string `yaml:"server_token" env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `yaml:"account_token" env:"POSTMARK_ACCOUNT_TOKEN"`
	TrackOpens   bool   `yaml:"track_opens"`
}

// ResendConfig contains the Resend API key
type ResendConfig struct {
	APIKey string `yaml:"api_key" env:"RESEND_API_KEY"`
}

// SESConfig contains Amazon SES settings
type SESConfig struct {
	Region           string `yaml:"region" env:"SES_REGION"`
	AccessKeyID      string `yaml:"access_key_id" env:"SES_ACCESS_KEY_ID"`
	SecretAccessKey  string `yaml:"secret_access_key" env:"SES_SECRET_ACCESS_KEY"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// DKIMConfig contains DKIM signing settings for the smtp provider
type DKIMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Domain   string `yaml:"domain"`
	Selector string `yaml:"selector"`
	KeyFile  string `yaml:"key_file" env:"DKIM_KEY_FILE"`
}

// RateLimitConfig contains send quota settings
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// Global limits (for entire service)
	Global *LimitValues `yaml:"global,omitempty"`

	// Default limits for API keys
	DefaultAPIKey *LimitValues `yaml:"default_api_key,omitempty"`

	// Default limits for recipient domains (e.g., gmail.com)
	DefaultRecipientDomain *LimitValues `yaml:"default_recipient_domain,omitempty"`

	// Per-recipient-domain limits (overrides DefaultRecipientDomain)
	RecipientDomains map[string]*LimitValues `yaml:"recipient_domains,omitempty"`
}

// LimitValues contains rate limit values
type LimitValues struct {
	MessagesPerHour int `yaml:"messages_per_hour"`
	MessagesPerDay  int `yaml:"messages_per_day"`
}

// Load loads configuration from a YAML file and applies environment
// overrides. An empty path configures from the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv reads a .env file next to the config file, or in the working
// directory when no config file is used. Variables already set win.
func loadDotEnv(configPath string) error {
	name := ".env"
	if configPath != "" {
		name = filepath.Join(filepath.Dir(configPath), ".env")
	}

	if _, err := os.Stat(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}

	if err := godotenv.Load(name); err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	return nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Server.Hostname == "" {
		hostname, _ := os.Hostname()
		c.Server.Hostname = hostname
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.MaxHeaderBytes == 0 {
		c.API.MaxHeaderBytes = 1 << 20 // 1 MB
	}
	if c.API.MaxBodyBytes == 0 {
		c.API.MaxBodyBytes = 2 << 20 // 2 MB
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 30 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 60 * time.Second
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = 60 * time.Second
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "/var/lib/fgmail/fgmail.db"
	}
	if c.Storage.Retention == nil {
		c.Storage.Retention = &RetentionConfig{}
	}
	if c.Storage.Retention.CleanupInterval == 0 {
		c.Storage.Retention.CleanupInterval = time.Hour
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.FlushInterval == 0 {
		c.Metrics.FlushInterval = 10 * time.Second
	}

	if c.Mail.Provider == "" {
		c.Mail.Provider = ProviderSMTP
	}
	if c.Mail.Mode == "" {
		c.Mail.Mode = ModeProduction
	}
	if c.Mail.FromName == "" {
		c.Mail.FromName = "Federal Gaz"
	}
	if c.Mail.Concurrency == 0 {
		c.Mail.Concurrency = 4
	}
	if c.Mail.Timeout == 0 {
		c.Mail.Timeout = 30 * time.Second
	}
	if c.Mail.MaxRetries == 0 {
		c.Mail.MaxRetries = 3
	}
	if c.Mail.RetryInterval == 0 {
		c.Mail.RetryInterval = 2 * time.Second
	}
	if c.Mail.MaxRecipients == 0 {
		c.Mail.MaxRecipients = 10000
	}
	if c.Mail.SMTP.Port == 0 {
		c.Mail.SMTP.Port = 587
	}
	if c.Mail.SMTP.TLS == "" {
		c.Mail.SMTP.TLS = "starttls"
	}
	if c.Mail.SES.Region == "" {
		c.Mail.SES.Region = "eu-central-1"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Mail.Concurrency < 0 {
		return fmt.Errorf("mail.concurrency must not be negative")
	}

	if err := c.validateMail(); err != nil {
		return err
	}

	return c.validateDKIM()
}

// validateMail validates sender identity and provider settings
func (c *Config) validateMail() error {
	m := c.Mail

	if m.FromEmail == "" {
		return fmt.Errorf("mail.from_email is required")
	}
	if _, err := mail.ParseAddress(m.FromEmail); err != nil {
		return fmt.Errorf("invalid mail.from_email: %w", err)
	}
	if m.ReplyTo != "" {
		if _, err := mail.ParseAddress(m.ReplyTo); err != nil {
			return fmt.Errorf("invalid mail.reply_to: %w", err)
		}
	}

	switch m.Mode {
	case ModeProduction, ModeSandbox:
	case ModeRedirect:
		if len(m.RedirectTo) == 0 {
			return fmt.Errorf("mail.redirect_to is required when mode is redirect")
		}
	default:
		return fmt.Errorf("mail.mode must be one of: production, sandbox, redirect")
	}

	if p := m.Sandbox.ErrorProbability; p < 0 || p > 1 {
		return fmt.Errorf("mail.sandbox.error_probability must be between 0 and 1")
	}
	if m.Sandbox.SimulateErrors && m.Mode == ModeProduction {
		return fmt.Errorf("mail.sandbox.simulate_errors requires mode sandbox or redirect")
	}

	switch m.Provider {
	case ProviderSMTP:
		if m.SMTP.Host == "" {
			return fmt.Errorf("mail.smtp.host is required for the smtp provider")
		}
		validTLS := map[string]bool{"starttls": true, "tls": true, "none": true}
		if !validTLS[m.SMTP.TLS] {
			return fmt.Errorf("invalid mail.smtp.tls: %s (must be starttls, tls, or none)", m.SMTP.TLS)
		}
	case ProviderPostmark:
		if m.Postmark.ServerToken == "" {
			return fmt.Errorf("mail.postmark.server_token is required for the postmark provider")
		}
	case ProviderResend:
		if m.Resend.APIKey == "" {
			return fmt.Errorf("mail.resend.api_key is required for the resend provider")
		}
	case ProviderSES:
		if m.SES.AccessKeyID == "" || m.SES.SecretAccessKey == "" {
			return fmt.Errorf("mail.ses requires both access_key_id and secret_access_key")
		}
	case ProviderNoop:
	default:
		return fmt.Errorf("mail.provider must be one of: smtp, postmark, resend, ses, noop")
	}

	return nil
}

// validateDKIM validates DKIM configuration
func (c *Config) validateDKIM() error {
	d := c.Mail.DKIM
	if !d.Enabled {
		return nil
	}

	if d.Selector == "" {
		return fmt.Errorf("mail.dkim.selector is required when DKIM is enabled")
	}
	if d.KeyFile == "" {
		return fmt.Errorf("mail.dkim.key_file is required when DKIM is enabled")
	}
	if d.Domain == "" {
		return fmt.Errorf("mail.dkim.domain is required when DKIM is enabled")
	}

	return nil
}

// From returns the formatted sender address
func (m MailConfig) From() string {
	addr := mail.Address{Name: m.FromName, Address: m.FromEmail}
	return addr.String()
}
