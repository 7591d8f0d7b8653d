package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyluth/osechi/pkg/box"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "osechi.yml"

// OsechiConfig represents the top-level osechi.yml configuration
type OsechiConfig struct {
	Version   string          `yaml:"version"`
	Box       BoxConfig       `yaml:"box"`
	Store     StoreConfig     `yaml:"store"`
	Rules     RulesConfig     `yaml:"rules"`
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	TextGen   TextGenConfig   `yaml:"textgen"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BoxConfig names the box and fixes its shape
type BoxConfig struct {
	Name         string         `yaml:"name"`
	SlotsPerTier int            `yaml:"slots_per_tier,omitempty"`
	Tiers        []box.TierSpec `yaml:"tiers,omitempty"`
}

// StoreConfig specifies the Redis connection and synchronizer timing
type StoreConfig struct {
	RedisURL       string        `yaml:"redis_url"`
	ResyncInterval time.Duration `yaml:"resync_interval,omitempty"` // Full re-read period; Pub/Sub can drop events
	WriteTimeout   time.Duration `yaml:"write_timeout,omitempty"`
}

// RulesConfig holds the business-rule parameters of the arbitration engine
type RulesConfig struct {
	Limits        LimitsConfig      `yaml:"limits"`
	Diversity     DiversityConfig   `yaml:"diversity"`
	TitleMessages map[string]string `yaml:"title_messages,omitempty"` // lowercase title fragment -> duplicate rejection message
}

// LimitsConfig caps the rune length of each free-text field
type LimitsConfig struct {
	Title      int `yaml:"title,omitempty"`
	OwnerLabel int `yaml:"owner_label,omitempty"`
	Note       int `yaml:"note,omitempty"`
	Category   int `yaml:"category,omitempty"`
	Origin     int `yaml:"origin,omitempty"`
}

// DiversityConfig describes the soft cap on the overrepresented attribute
type DiversityConfig struct {
	Attribute      box.Attribute `yaml:"attribute,omitempty"`
	GraceThreshold *int          `yaml:"grace_threshold,omitempty"` // Filled-slot count at or below which the cap is not applied
	MaxFraction    float64       `yaml:"max_fraction,omitempty"`
	Message        string        `yaml:"message,omitempty"` // Rejection message shown when the cap is hit
}

// ServerConfig specifies the HTTP surface
type ServerConfig struct {
	Addr           string   `yaml:"addr,omitempty"`
	TokenSecret    string   `yaml:"token_secret,omitempty"`
	TokenIssuer    string   `yaml:"token_issuer,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// RateLimitConfig specifies the fixed-window limiter on text-generation endpoints
type RateLimitConfig struct {
	MaxRequests   int           `yaml:"max_requests,omitempty"`
	Window        time.Duration `yaml:"window,omitempty"`
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty"`
}

// TextGenConfig specifies the OpenAI-compatible completion endpoint
type TextGenConfig struct {
	BaseURL string        `yaml:"base_url,omitempty"`
	Model   string        `yaml:"model,omitempty"`
	APIKey  string        `yaml:"api_key,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// LoggingConfig specifies log level and encoding
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// DefaultTitleMessages is the built-in table of title-specific duplicate messages.
func DefaultTitleMessages() map[string]string {
	return map[string]string{
		"potato salad": "⚠️ ALERT: Too much Potato Salad! Please make something else.",
	}
}

// Default returns a configuration with every default applied.
func Default() *OsechiConfig {
	cfg := &OsechiConfig{Version: "1.0", Box: BoxConfig{Name: "default"}}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Layout returns the box shape described by the configuration.
func (c *OsechiConfig) Layout() box.Layout {
	return box.Layout{Tiers: c.Box.Tiers, SlotsPerTier: c.Box.SlotsPerTier}
}

// Validate performs strict validation on the configuration, applying
// defaults for every optional field that was left out.
func (c *OsechiConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: box name
	if c.Box.Name == "" {
		return fmt.Errorf("box.name is required")
	}
	if strings.ContainsAny(c.Box.Name, ": ") {
		return fmt.Errorf("box.name must not contain ':' or spaces, got %q", c.Box.Name)
	}

	c.applyDefaults()

	if err := c.Layout().Validate(); err != nil {
		return fmt.Errorf("invalid box layout: %w", err)
	}

	if err := c.Rules.validate(); err != nil {
		return err
	}

	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("rate_limit.max_requests must be >= 1, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.SweepInterval <= 0 {
		return fmt.Errorf("rate_limit.window and rate_limit.sweep_interval must be positive")
	}

	if c.Store.ResyncInterval < 0 || c.Store.WriteTimeout <= 0 {
		return fmt.Errorf("store.resync_interval must be >= 0 and store.write_timeout must be positive")
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging.format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	return nil
}

func (c *OsechiConfig) applyDefaults() {
	layout := box.DefaultLayout()
	if len(c.Box.Tiers) == 0 {
		c.Box.Tiers = layout.Tiers
	}
	if c.Box.SlotsPerTier == 0 {
		c.Box.SlotsPerTier = layout.SlotsPerTier
	}

	if c.Store.RedisURL == "" {
		c.Store.RedisURL = "redis://localhost:6379/0"
	}
	if c.Store.ResyncInterval == 0 {
		c.Store.ResyncInterval = 30 * time.Second
	}
	if c.Store.WriteTimeout == 0 {
		c.Store.WriteTimeout = 5 * time.Second
	}

	l := &c.Rules.Limits
	setDefault(&l.Title, 50)
	setDefault(&l.OwnerLabel, 30)
	setDefault(&l.Note, 200)
	setDefault(&l.Category, 30)
	setDefault(&l.Origin, 30)

	d := &c.Rules.Diversity
	if d.Attribute == "" {
		d.Attribute = box.AttributeBrown
	}
	if d.GraceThreshold == nil {
		defaultThreshold := 3
		d.GraceThreshold = &defaultThreshold
	}
	if d.MaxFraction == 0 {
		d.MaxFraction = 0.5
	}
	if d.Message == "" {
		d.Message = "The Osechi is too ugly! We need Red or Green foods only."
	}
	if c.Rules.TitleMessages == nil {
		c.Rules.TitleMessages = DefaultTitleMessages()
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}

	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = 10
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.SweepInterval == 0 {
		c.RateLimit.SweepInterval = 5 * time.Minute
	}

	if c.TextGen.BaseURL == "" {
		c.TextGen.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	}
	if c.TextGen.Model == "" {
		c.TextGen.Model = "gemini-2.5-flash"
	}
	if c.TextGen.Timeout == 0 {
		c.TextGen.Timeout = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

func (r *RulesConfig) validate() error {
	for name, v := range map[string]int{
		"title":       r.Limits.Title,
		"owner_label": r.Limits.OwnerLabel,
		"note":        r.Limits.Note,
		"category":    r.Limits.Category,
		"origin":      r.Limits.Origin,
	} {
		if v < 1 {
			return fmt.Errorf("rules.limits.%s must be >= 1, got %d", name, v)
		}
	}

	if err := r.Diversity.Attribute.Validate(); err != nil {
		return fmt.Errorf("rules.diversity.attribute: %w", err)
	}
	if *r.Diversity.GraceThreshold < 0 {
		return fmt.Errorf("rules.diversity.grace_threshold must be >= 0, got %d", *r.Diversity.GraceThreshold)
	}
	if r.Diversity.MaxFraction <= 0 || r.Diversity.MaxFraction > 1 {
		return fmt.Errorf("rules.diversity.max_fraction must be in (0, 1], got %g", r.Diversity.MaxFraction)
	}

	for key := range r.TitleMessages {
		if key != strings.ToLower(strings.TrimSpace(key)) || key == "" {
			return fmt.Errorf("rules.title_messages key %q must be lowercase and trimmed", key)
		}
	}

	return nil
}

// ApplyEnv overrides secrets and connection settings from the environment.
// Recognised variables: REDIS_URL, OSECHI_BOX, OSECHI_API_KEY, OSECHI_TOKEN_SECRET.
func (c *OsechiConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv("REDIS_URL"); v != "" {
		c.Store.RedisURL = v
	}
	if v := getenv("OSECHI_BOX"); v != "" {
		c.Box.Name = v
	}
	if v := getenv("OSECHI_API_KEY"); v != "" {
		c.TextGen.APIKey = v
	}
	if v := getenv("OSECHI_TOKEN_SECRET"); v != "" {
		c.Server.TokenSecret = v
	}
}

// Load reads and validates osechi.yml from the specified path
func Load(path string) (*OsechiConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse validates an osechi.yml document held in memory.
func Parse(data []byte) (*OsechiConfig, error) {
	var config OsechiConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefault(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
