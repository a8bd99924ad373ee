package studybuddy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/studybuddy/internal/config"
	"github.com/kailas-cloud/studybuddy/internal/db"
	"github.com/kailas-cloud/studybuddy/internal/db/memory"
	dbRedis "github.com/kailas-cloud/studybuddy/internal/db/redis"
	"github.com/kailas-cloud/studybuddy/internal/domain"
	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	domquota "github.com/kailas-cloud/studybuddy/internal/domain/quota"
	quotarepo "github.com/kailas-cloud/studybuddy/internal/repository/quota"
	"github.com/kailas-cloud/studybuddy/internal/transport/openai"
	"github.com/kailas-cloud/studybuddy/internal/usecase/broker"
	"github.com/kailas-cloud/studybuddy/internal/usecase/conversation"
	"github.com/kailas-cloud/studybuddy/internal/usecase/prompt"
	"github.com/kailas-cloud/studybuddy/internal/usecase/quota"
	"github.com/kailas-cloud/studybuddy/internal/usecase/session"
	usageuc "github.com/kailas-cloud/studybuddy/internal/usecase/usage"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultSessionID        = "default"
	defaultKeyPrefix        = "studybuddy:"
	defaultQuotaTTL         = 48 * time.Hour
)

// Client is the studybuddy entry point for one device/session.
// Safe for concurrent use.
type Client struct {
	store     db.Store
	ownsStore bool
	provider  broker.Provider
	tracker   *quota.Tracker
	log       *conversation.Log
	broker    *broker.Broker
	usage     *usageuc.Service
	obs       *observer
}

// New creates a Client. The provided context is used for the readiness
// check and the initial load of the stored allowance.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		sessionID:      defaultSessionID,
		keyPrefix:      defaultKeyPrefix,
		shortFormLimit: 3,
		longFormLimit:  2,
		location:       time.UTC,
		maxAttempts:    broker.DefaultMaxAttempts,
		retryBackoff:   broker.DefaultRetryBackoff,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if err := session.ValidateID(cfg.sessionID); err != nil {
		return nil, fmt.Errorf("studybuddy: %w", err)
	}
	limits, err := domquota.NewLimits(map[category.Category]int{
		category.ShortForm: cfg.shortFormLimit,
		category.LongForm:  cfg.longFormLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("studybuddy: limits: %w", err)
	}

	provider, err := createProvider(cfg)
	if err != nil {
		return nil, err
	}

	store, owns, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if store != nil && owns {
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("studybuddy: database not ready: %w", err)
		}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		if owns {
			store.Close()
		}
		return nil, err
	}

	c, err := wireClient(ctx, store, owns, provider, limits, cfg, obs)
	if err != nil {
		if owns {
			store.Close()
		}
		return nil, fmt.Errorf("studybuddy: %w", err)
	}
	return c, nil
}

func createProvider(cfg *clientConfig) (broker.Provider, error) {
	if cfg.provider != nil {
		return &providerAdapter{inner: cfg.provider}, nil
	}
	if cfg.apiKey == "" {
		return nil, errors.New("studybuddy: provider required (use WithGemini, WithOpenAICompatible or WithProvider)")
	}
	baseURL := cfg.baseURL
	if baseURL == "" {
		baseURL = config.DefaultProviderBaseURL
	}
	model := cfg.model
	if model == "" {
		model = config.DefaultProviderModel
	}
	return openai.NewProvider(&openai.Config{
		APIKey:  cfg.apiKey,
		BaseURL: baseURL,
		Model:   model,
		Timeout: cfg.timeout,
		Logger:  loggerOrNop(cfg.logger),
	}), nil
}

// createStore returns the configured store and whether the client owns it.
func createStore(cfg *clientConfig) (db.Store, bool, error) {
	switch cfg.driver {
	case "":
		return nil, false, nil
	case "external":
		return cfg.store, false, nil
	case "memory":
		return memory.NewStore(), true, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, false, fmt.Errorf("studybuddy: create redis store: %w", err)
		}
		return s, true, nil
	default:
		return nil, false, fmt.Errorf("studybuddy: unknown driver %q", cfg.driver)
	}
}

func wireClient(
	ctx context.Context,
	store db.Store,
	owns bool,
	provider broker.Provider,
	limits domquota.Limits,
	cfg *clientConfig,
	obs *observer,
) (*Client, error) {
	logger := loggerOrNop(cfg.logger).With(zap.String("session", cfg.sessionID))

	tracker := quota.NewTracker(limits, cfg.location, logger)
	if store != nil {
		var err error
		tracker, err = tracker.WithStore(ctx, quotarepo.New(store, cfg.keyPrefix, defaultQuotaTTL), cfg.sessionID)
		if err != nil {
			return nil, err
		}
	}

	composer := prompt.New(prompt.Config{
		Persona:         cfg.persona,
		EvaluationStyle: cfg.evaluationStyle,
	})
	log := conversation.NewLog()

	b := broker.New(tracker, composer, provider, log, logger).
		WithTimeout(cfg.timeout).
		WithRetry(cfg.maxAttempts, cfg.retryBackoff).
		WithFailurePlaceholder(cfg.placeholder)

	return &Client{
		store:     store,
		ownsStore: owns,
		provider:  provider,
		tracker:   tracker,
		log:       log,
		broker:    b,
		usage:     usageuc.New(),
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil && c.ownsStore {
		c.store.Close()
	}
}

// Ask answers question in the shape of t.
// Errors match ErrInvalidInput, ErrQuotaExceeded or ErrProviderError;
// a failed provider call does not consume the allowance.
func (c *Client) Ask(ctx context.Context, question string, t AnswerType) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	a, err := c.broker.Ask(ctx, question, category.Category(t))
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return answerFromDomain(a), nil
}

// Remaining returns the answers of type t left today.
func (c *Client) Remaining(t AnswerType) int {
	return c.tracker.RemainingForCategory(category.Category(t))
}

// Conversation returns the chat history in order.
func (c *Client) Conversation() []Message {
	out := make([]Message, 0, c.log.Len())
	for m := range c.log.All() {
		out = append(out, messageFromDomain(m))
	}
	return out
}

// Usage returns the allowance of every answer type.
func (c *Client) Usage(ctx context.Context) Usage {
	start := time.Now()
	defer c.obs.observe("usage", start, nil)

	return usageFromDomain(c.usage.GetReport(ctx, c.tracker))
}

// Ping checks the store and, when supported, the provider.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if c.store != nil {
		if err = c.store.Ping(ctx); err != nil {
			return fmt.Errorf("ping store: %w", err)
		}
	}
	if hc, ok := c.provider.(domain.HealthChecker); ok {
		if err = hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("ping provider: %w", err)
		}
	}
	return nil
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
