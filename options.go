package studybuddy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/studybuddy/internal/db"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "redis", "memory" or empty for no persistence
	addrs    []string
	password string
	store    db.Store

	sessionID string
	keyPrefix string

	apiKey   string
	baseURL  string
	model    string
	provider Provider

	shortFormLimit int
	longFormLimit  int
	location       *time.Location

	timeout      time.Duration
	maxAttempts  int
	retryBackoff time.Duration
	placeholder  string

	persona         string
	evaluationStyle string

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithRedis persists the daily allowance in a Redis or Valkey instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemoryStore keeps the allowance in process memory.
// Without a store option the allowance lives only in the tracker itself.
func WithMemoryStore() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// withStore attaches an existing store; the client does not close it.
func withStore(s db.Store) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "external"
		c.store = s
	})
}

// WithSession sets the device/session id the allowance is stored under.
// Default: "default".
func WithSession(id string) Option {
	return optionFunc(func(c *clientConfig) {
		c.sessionID = id
	})
}

// WithKeyPrefix sets the storage key prefix. Default: "studybuddy:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithGemini uses Gemini through its OpenAI-compatible endpoint.
func WithGemini(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
	})
}

// WithOpenAICompatible uses any OpenAI-compatible chat completion endpoint.
func WithOpenAICompatible(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
		c.baseURL = baseURL
		c.model = model
	})
}

// WithProvider sets a custom generative provider. It takes precedence over WithGemini.
func WithProvider(p Provider) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = p
	})
}

// WithLimits sets the daily caps. Defaults: 3 short-form, 2 long-form.
func WithLimits(shortForm, longForm int) Option {
	return optionFunc(func(c *clientConfig) {
		c.shortFormLimit = shortForm
		c.longFormLimit = longForm
	})
}

// WithTimezone sets where the daily reset happens. Default: UTC.
func WithTimezone(loc *time.Location) Option {
	return optionFunc(func(c *clientConfig) {
		c.location = loc
	})
}

// WithTimeout bounds each provider attempt. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithRetry allows up to maxAttempts provider attempts for transport failures and timeouts.
// Default: 2 attempts, 500ms apart.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxAttempts = maxAttempts
		c.retryBackoff = backoff
	})
}

// WithFailurePlaceholder records text as an assistant message after a failed answer.
func WithFailurePlaceholder(text string) Option {
	return optionFunc(func(c *clientConfig) {
		c.placeholder = text
	})
}

// WithPersona sets the system persona and the evaluation style it is rendered with.
// persona may contain one %s for the style.
func WithPersona(persona, evaluationStyle string) Option {
	return optionFunc(func(c *clientConfig) {
		c.persona = persona
		c.evaluationStyle = evaluationStyle
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
