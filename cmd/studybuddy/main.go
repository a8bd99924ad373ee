package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/studybuddy/internal/config"
	"github.com/kailas-cloud/studybuddy/internal/db"
	"github.com/kailas-cloud/studybuddy/internal/db/memory"
	dbRedis "github.com/kailas-cloud/studybuddy/internal/db/redis"
	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	"github.com/kailas-cloud/studybuddy/internal/domain/generation"
	logpkg "github.com/kailas-cloud/studybuddy/internal/logger"
	"github.com/kailas-cloud/studybuddy/internal/metrics"
	quotarepo "github.com/kailas-cloud/studybuddy/internal/repository/quota"
	chiTransport "github.com/kailas-cloud/studybuddy/internal/transport/chi"
	openaiProvider "github.com/kailas-cloud/studybuddy/internal/transport/openai"
	healthuc "github.com/kailas-cloud/studybuddy/internal/usecase/health"
	"github.com/kailas-cloud/studybuddy/internal/usecase/prompt"
	"github.com/kailas-cloud/studybuddy/internal/usecase/session"
	usageuc "github.com/kailas-cloud/studybuddy/internal/usecase/usage"
	"github.com/kailas-cloud/studybuddy/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting studybuddy API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("model", cfg.Provider.Model),
	)

	// Create database store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "memory":
		store = memory.NewStore()
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register answer metrics explicitly (no init())
	metrics.RegisterAnswerMetrics()

	limits, err := cfg.Limits()
	if err != nil {
		logger.Fatal("Invalid quota limits", zap.Error(err))
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Invalid quota timezone", zap.Error(err))
	}

	provider := openaiProvider.NewProvider(&openaiProvider.Config{
		APIKey:       cfg.Provider.APIKey,
		BaseURL:      cfg.Provider.BaseURL,
		Model:        cfg.Provider.Model,
		InlineSystem: cfg.Provider.InlineSystem,
		Timeout:      cfg.ProviderTimeout(),
		Logger:       logger,
	})
	composer := prompt.New(composerConfig(cfg.Prompt))

	sessions := session.NewRegistry(limits, loc, composer, provider, logger).
		WithStore(quotarepo.New(store, cfg.Storage.KeyPrefix, cfg.QuotaTTL())).
		WithBrokerOptions(session.BrokerOptions{
			Timeout:            cfg.ProviderTimeout(),
			MaxAttempts:        cfg.Broker.MaxAttempts,
			RetryBackoff:       cfg.RetryBackoff(),
			MaxQuestionLength:  cfg.Broker.MaxQuestionLength,
			FailurePlaceholder: cfg.Broker.FailurePlaceholder,
		})
	logger.Info("Answer broker ready",
		zap.Int("short_form_limit", limits.Limit(category.ShortForm)),
		zap.Int("long_form_limit", limits.Limit(category.LongForm)),
		zap.String("timezone", loc.String()),
		zap.Int("max_attempts", cfg.Broker.MaxAttempts),
	)

	usageSvc := usageuc.New()
	healthSvc := healthuc.New(store, provider)

	// Create chi server
	server := chiTransport.NewServer(sessions, usageSvc, healthSvc, logger).
		WithSessionHeader(cfg.Session.Header, cfg.Session.DefaultID)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger, cfg.Session.Header))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully", zap.Int("sessions", sessions.Len()))
}

// composerConfig maps the prompt section onto per-category policies.
// Instructions stay at their defaults.
func composerConfig(p config.PromptConfig) prompt.Config {
	params := func(maxTokens int) generation.Params {
		return generation.Params{
			MaxOutputTokens: maxTokens,
			Temperature:     p.Temperature,
			TopK:            p.TopK,
			TopP:            p.TopP,
		}
	}
	return prompt.Config{
		Persona:         p.Persona,
		EvaluationStyle: p.EvaluationStyle,
		Policies: map[category.Category]prompt.Policy{
			category.ShortForm: {Params: params(p.ShortFormMaxTokens)},
			category.LongForm:  {Params: params(p.LongFormMaxTokens)},
		},
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger, sessionHeader string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// One line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("session", r.Header.Get(sessionHeader)),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
