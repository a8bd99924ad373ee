package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	domquota "github.com/kailas-cloud/studybuddy/internal/domain/quota"
)

// Config holds the studybuddy API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Provider ProviderConfig `yaml:"provider"`
	Quota    QuotaConfig    `yaml:"quota"`
	Prompt   PromptConfig   `yaml:"prompt"`
	Broker   BrokerConfig   `yaml:"broker"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix     string `yaml:"key_prefix"`
	QuotaTTLHours int    `yaml:"quota_ttl_hours"`
}

// ProviderConfig holds the generative provider settings.
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	TimeoutSec   int    `yaml:"timeout_sec"`
	InlineSystem bool   `yaml:"inline_system"` // fold the persona into the user message
}

// QuotaConfig holds daily answer limits.
type QuotaConfig struct {
	ShortForm int    `yaml:"short_form"`
	LongForm  int    `yaml:"long_form"`
	Timezone  string `yaml:"timezone"` // IANA name; the daily reset happens at local midnight
}

// PromptConfig holds prompt composition settings.
type PromptConfig struct {
	Persona            string  `yaml:"persona"`
	EvaluationStyle    string  `yaml:"evaluation_style"`
	ShortFormMaxTokens int     `yaml:"short_form_max_tokens"`
	LongFormMaxTokens  int     `yaml:"long_form_max_tokens"`
	Temperature        float32 `yaml:"temperature"` // 0 selects the default
	TopK               int     `yaml:"top_k"`
	TopP               float32 `yaml:"top_p"`
}

// BrokerConfig holds answer broker policy.
type BrokerConfig struct {
	MaxAttempts        int    `yaml:"max_attempts"`
	RetryBackoffMs     int    `yaml:"retry_backoff_ms"`
	MaxQuestionLength  int    `yaml:"max_question_length"`
	FailurePlaceholder string `yaml:"failure_placeholder"` // empty disables the placeholder message
}

// SessionConfig holds session resolution settings.
type SessionConfig struct {
	Header    string `yaml:"header"`
	DefaultID string `yaml:"default_id"`
}

// Default values.
const (
	DefaultProviderBaseURL    = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultProviderModel      = "gemini-2.0-flash"
	DefaultPersona            = "You are a professional AI assistant specialized in %s exam preparation."
	DefaultEvaluationStyle    = "Anna University"
	DefaultFailurePlaceholder = "Sorry, I'm having trouble connecting right now. Please try again in a moment."
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML config bytes, expands env variables, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "studybuddy:"
	}
	if c.Storage.QuotaTTLHours <= 0 {
		c.Storage.QuotaTTLHours = 48
	}
	c.applyProviderDefaults()
	c.applyQuotaDefaults()
	c.applyPromptDefaults()
	c.applyBrokerDefaults()
	if c.Session.Header == "" {
		c.Session.Header = "X-Session-ID"
	}
	if c.Session.DefaultID == "" {
		c.Session.DefaultID = "default"
	}
}

func (c *Config) applyProviderDefaults() {
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultProviderBaseURL
	}
	if c.Provider.Model == "" {
		c.Provider.Model = DefaultProviderModel
	}
	if c.Provider.TimeoutSec <= 0 {
		c.Provider.TimeoutSec = 30
	}
}

func (c *Config) applyQuotaDefaults() {
	if c.Quota.ShortForm == 0 {
		c.Quota.ShortForm = 3
	}
	if c.Quota.LongForm == 0 {
		c.Quota.LongForm = 2
	}
	if c.Quota.Timezone == "" {
		c.Quota.Timezone = "UTC"
	}
}

func (c *Config) applyPromptDefaults() {
	if c.Prompt.Persona == "" {
		c.Prompt.Persona = DefaultPersona
	}
	if c.Prompt.EvaluationStyle == "" {
		c.Prompt.EvaluationStyle = DefaultEvaluationStyle
	}
	if c.Prompt.ShortFormMaxTokens <= 0 {
		c.Prompt.ShortFormMaxTokens = 512
	}
	if c.Prompt.LongFormMaxTokens <= 0 {
		c.Prompt.LongFormMaxTokens = 1024
	}
	if c.Prompt.Temperature <= 0 {
		c.Prompt.Temperature = 0.7
	}
	if c.Prompt.TopK <= 0 {
		c.Prompt.TopK = 40
	}
	if c.Prompt.TopP <= 0 {
		c.Prompt.TopP = 0.95
	}
}

func (c *Config) applyBrokerDefaults() {
	if c.Broker.MaxAttempts <= 0 {
		c.Broker.MaxAttempts = 2
	}
	if c.Broker.RetryBackoffMs <= 0 {
		c.Broker.RetryBackoffMs = 500
	}
	if c.Broker.MaxQuestionLength <= 0 {
		c.Broker.MaxQuestionLength = 4000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "memory":
		// ok
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"memory\", got %q", c.Database.Driver)
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if _, err := c.Limits(); err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Prompt.TopP > 1 {
		return fmt.Errorf("prompt.top_p must be in (0, 1], got %g", c.Prompt.TopP)
	}
	if c.Prompt.Temperature > 2 {
		return fmt.Errorf("prompt.temperature must be in (0, 2], got %g", c.Prompt.Temperature)
	}
	if c.Broker.MaxAttempts > 5 {
		return fmt.Errorf("broker.max_attempts must be between 1 and 5, got %d", c.Broker.MaxAttempts)
	}
	return nil
}

// Limits returns the validated per-category daily caps.
func (c *Config) Limits() (domquota.Limits, error) {
	return domquota.NewLimits(map[category.Category]int{ //nolint:wrapcheck // wrapped by caller
		category.ShortForm: c.Quota.ShortForm,
		category.LongForm:  c.Quota.LongForm,
	})
}

// Location resolves quota.timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Quota.Timezone)
	if err != nil {
		return nil, fmt.Errorf("quota.timezone %q: %w", c.Quota.Timezone, err)
	}
	return loc, nil
}

// ProviderTimeout returns the per-attempt provider timeout.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSec) * time.Second
}

// RetryBackoff returns the pause between provider attempts.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Broker.RetryBackoffMs) * time.Millisecond
}

// QuotaTTL returns how long an idle session's quota hash is kept.
func (c *Config) QuotaTTL() time.Duration {
	return time.Duration(c.Storage.QuotaTTLHours) * time.Hour
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
