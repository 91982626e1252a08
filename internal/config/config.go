package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPersonaKey is the segment contacts fall into when their persona tag
// is missing or unknown.
const DefaultPersonaKey = "founders"

// Config is the main configuration structure
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	LLM      LLMConfig     `yaml:"llm"`
	CRM      CRMConfig     `yaml:"crm"`
	Content  ContentConfig `yaml:"content"`
	Data     DataConfig    `yaml:"data"`
	Logging  LoggingConfig `yaml:"logging"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Personas []Persona     `yaml:"personas"`
}

// ServerConfig contains dashboard HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"` // Default: :5000
}

// LLMConfig contains generative text service settings
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"` // Usually set via ANTHROPIC_API_KEY
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// CRMConfig contains CRM API settings
type CRMConfig struct {
	APIKey    string `yaml:"api_key"`    // Usually set via HUBSPOT_API_KEY
	AccountID string `yaml:"account_id"` // Usually set via HUBSPOT_ACCOUNT_ID
	BaseURL   string `yaml:"base_url"`   // Default: https://api.hubapi.com
}

// ContentConfig contains generation targets and batch sizes
type ContentConfig struct {
	BlogWordMin            int `yaml:"blog_word_min"`
	BlogWordMax            int `yaml:"blog_word_max"`
	NewsletterWordMin      int `yaml:"newsletter_word_min"`
	NewsletterWordMax      int `yaml:"newsletter_word_max"`
	MockContactsPerPersona int `yaml:"mock_contacts_per_persona"`
	VariationCount         int `yaml:"variation_count"`
}

// DataConfig contains artifact storage settings
type DataConfig struct {
	Dir string `yaml:"dir"` // Default: data
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // Default: /metrics
}

// Persona describes one audience segment newsletters are written for.
type Persona struct {
	Key   string   `yaml:"key" json:"key"`
	Name  string   `yaml:"name" json:"name"`
	Focus []string `yaml:"focus" json:"focus"`
	Tone  string   `yaml:"tone" json:"tone"`
}

// Load loads configuration from a YAML file. A missing file is not an error:
// the defaults describe a fully working mock-mode pipeline. Secrets are read
// from the environment (a .env file is honored when present) and override
// file values.
func Load(path string) (*Config, error) {
	// Ignore a missing .env; environment variables may be set directly.
	_ = godotenv.Load()

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.setDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":5000"
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "claude-sonnet-4-20250514"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}

	if c.CRM.BaseURL == "" {
		c.CRM.BaseURL = "https://api.hubapi.com"
	}

	if c.Content.BlogWordMin == 0 {
		c.Content.BlogWordMin = 400
	}
	if c.Content.BlogWordMax == 0 {
		c.Content.BlogWordMax = 600
	}
	if c.Content.NewsletterWordMin == 0 {
		c.Content.NewsletterWordMin = 150
	}
	if c.Content.NewsletterWordMax == 0 {
		c.Content.NewsletterWordMax = 250
	}
	if c.Content.MockContactsPerPersona == 0 {
		c.Content.MockContactsPerPersona = 10
	}
	if c.Content.VariationCount == 0 {
		c.Content.VariationCount = 2
	}

	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if len(c.Personas) == 0 {
		c.Personas = DefaultPersonas()
	}
}

// applyEnv overrides secrets from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("HUBSPOT_API_KEY"); v != "" {
		c.CRM.APIKey = v
	}
	if v := os.Getenv("HUBSPOT_ACCOUNT_ID"); v != "" {
		c.CRM.AccountID = v
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !strings.Contains(c.Server.ListenAddr, ":") {
		return fmt.Errorf("server.listen_addr must be host:port, got %q", c.Server.ListenAddr)
	}

	if c.Content.BlogWordMin <= 0 || c.Content.BlogWordMax < c.Content.BlogWordMin {
		return fmt.Errorf("content blog word range is invalid: [%d, %d]",
			c.Content.BlogWordMin, c.Content.BlogWordMax)
	}
	if c.Content.NewsletterWordMin <= 0 || c.Content.NewsletterWordMax < c.Content.NewsletterWordMin {
		return fmt.Errorf("content newsletter word range is invalid: [%d, %d]",
			c.Content.NewsletterWordMin, c.Content.NewsletterWordMax)
	}

	if len(c.Personas) == 0 {
		return fmt.Errorf("at least one persona is required")
	}
	seen := make(map[string]bool, len(c.Personas))
	for _, p := range c.Personas {
		if p.Key == "" {
			return fmt.Errorf("persona key must not be empty")
		}
		if seen[p.Key] {
			return fmt.Errorf("duplicate persona key %q", p.Key)
		}
		seen[p.Key] = true
		if p.Name == "" {
			return fmt.Errorf("persona %q has no name", p.Key)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}

	return nil
}

// PersonaKeys returns persona keys in registry order.
func (c *Config) PersonaKeys() []string {
	keys := make([]string, len(c.Personas))
	for i, p := range c.Personas {
		keys[i] = p.Key
	}
	return keys
}

// Persona looks up a persona by key.
func (c *Config) Persona(key string) (Persona, bool) {
	for _, p := range c.Personas {
		if p.Key == key {
			return p, true
		}
	}
	return Persona{}, false
}

// DefaultPersonas returns the fixed persona registry: founders, creatives and
// operations, in generation order.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Key:   "founders",
			Name:  "Founders / Decision-Makers",
			Focus: []string{"ROI", "growth", "efficiency", "competitive advantage"},
			Tone:  "executive, data-driven, strategic",
		},
		{
			Key:   "creatives",
			Name:  "Creative Professionals",
			Focus: []string{"inspiration", "time-saving tools", "creativity", "design"},
			Tone:  "inspiring, visual, innovative",
		},
		{
			Key:   "operations",
			Name:  "Operations Managers",
			Focus: []string{"workflows", "integrations", "reliability", "scalability"},
			Tone:  "technical, practical, process-oriented",
		},
	}
}
