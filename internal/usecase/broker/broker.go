package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/studybuddy/internal/domain"
	"github.com/kailas-cloud/studybuddy/internal/domain/answer"
	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	"github.com/kailas-cloud/studybuddy/internal/domain/generation"
	"github.com/kailas-cloud/studybuddy/internal/domain/message"
	"github.com/kailas-cloud/studybuddy/internal/metrics"
)

// Defaults.
const (
	DefaultMaxAttempts       = 2
	DefaultRetryBackoff      = 500 * time.Millisecond
	DefaultMaxQuestionLength = 4000
)

// Ask outcome labels.
const (
	outcomeAnswered      = "answered"
	outcomeQuotaExceeded = "quota_exceeded"
	outcomeInvalidInput  = "invalid_input"
	outcomeProviderError = "provider_error"
)

// Broker gates provider calls behind the daily quota and keeps the log in step.
// One Broker serves one session; Ask is safe for concurrent use.
type Broker struct {
	tracker  QuotaTracker
	composer Composer
	provider Provider
	log      ConversationLog

	timeout        time.Duration
	maxAttempts    int
	backoff        time.Duration
	maxQuestionLen int
	placeholder    string

	sleep   func(ctx context.Context, d time.Duration) error
	observe func(State)
	logger  *zap.Logger
}

// New creates a Broker with default retry policy and no failure placeholder.
func New(
	tracker QuotaTracker, composer Composer, provider Provider,
	log ConversationLog, logger *zap.Logger,
) *Broker {
	return &Broker{
		tracker:        tracker,
		composer:       composer,
		provider:       provider,
		log:            log,
		maxAttempts:    DefaultMaxAttempts,
		backoff:        DefaultRetryBackoff,
		maxQuestionLen: DefaultMaxQuestionLength,
		sleep:          sleepCtx,
		observe:        func(State) {},
		logger:         logger,
	}
}

// WithTimeout sets the per-attempt provider timeout (non-positive means the provider default).
func (b *Broker) WithTimeout(d time.Duration) *Broker {
	b.timeout = d
	return b
}

// WithRetry sets the total attempt count and the pause between attempts.
// Only transport failures and timeouts are retried.
func (b *Broker) WithRetry(maxAttempts int, backoff time.Duration) *Broker {
	if maxAttempts > 0 {
		b.maxAttempts = maxAttempts
	}
	if backoff >= 0 {
		b.backoff = backoff
	}
	return b
}

// WithMaxQuestionLength caps the question length in characters.
func (b *Broker) WithMaxQuestionLength(n int) *Broker {
	if n > 0 {
		b.maxQuestionLen = n
	}
	return b
}

// WithFailurePlaceholder logs an assistant message with text after a failed call.
// Empty text disables it.
func (b *Broker) WithFailurePlaceholder(text string) *Broker {
	b.placeholder = text
	return b
}

// WithObserver registers a callback for every state transition.
func (b *Broker) WithObserver(fn func(State)) *Broker {
	if fn != nil {
		b.observe = fn
	}
	return b
}

// Ask answers question in the shape of c.
// Errors: domain.ErrInvalidInput, domain.ErrQuotaExceeded or *domain.ProviderError.
func (b *Broker) Ask(ctx context.Context, question string, c category.Category) (answer.Answer, error) {
	start := time.Now()
	ans, outcome, err := b.ask(ctx, question, c)

	metrics.AskTotal.WithLabelValues(string(c), outcome).Inc()
	if outcome == outcomeAnswered || outcome == outcomeProviderError {
		metrics.AskDuration.WithLabelValues(string(c)).Observe(time.Since(start).Seconds())
	}
	return ans, err
}

func (b *Broker) ask(ctx context.Context, question string, c category.Category) (answer.Answer, string, error) {
	b.observe(StateValidating)
	q, err := b.validate(question, c)
	if err != nil {
		b.observe(StateFailed)
		return answer.Answer{}, outcomeInvalidInput, err
	}

	b.observe(StateAuthorizing)
	r, err := b.tracker.CheckAndReserve(ctx, c)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			b.observe(StateDenied)
			b.logger.Info("Quota exceeded", zap.String("category", string(c)))
			return answer.Answer{}, outcomeQuotaExceeded, fmt.Errorf("reserve: %w", err)
		}
		b.observe(StateFailed)
		return answer.Answer{}, outcomeInvalidInput, fmt.Errorf("reserve: %w", err)
	}

	// Every exit past this point settles the reservation exactly once.
	committed := false
	defer func() {
		if !committed {
			b.tracker.Rollback(r)
		}
	}()

	b.observe(StateComposing)
	req, err := b.composer.Build(q, c)
	if err != nil {
		b.observe(StateFailed)
		return answer.Answer{}, outcomeInvalidInput, fmt.Errorf("compose: %w", err)
	}

	b.observe(StateCalling)
	text, attempts, err := b.call(ctx, req)
	if err != nil {
		drafts := []message.Draft{{Role: message.RoleUser, Text: q, Category: c}}
		if b.placeholder != "" {
			drafts = append(drafts, message.Draft{
				Role: message.RoleAssistant, Text: b.placeholder, Category: c, Failed: true,
			})
		}
		b.log.Append(drafts...)
		b.observe(StateFailed)

		b.logger.Warn("Answer generation failed",
			zap.String("category", string(c)),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return answer.Answer{}, outcomeProviderError, err
	}

	b.observe(StateRecording)
	msgs := b.log.Append(
		message.Draft{Role: message.RoleUser, Text: q, Category: c},
		message.Draft{Role: message.RoleAssistant, Text: text, Category: c},
	)
	committed = true
	b.tracker.Commit(r)
	b.observe(StateDone)

	ans := answer.Answer{
		Text:      text,
		Category:  c,
		Attempts:  attempts,
		Remaining: b.tracker.RemainingForCategory(c),
	}
	if len(msgs) == 2 {
		ans.QuestionMessageID = msgs[0].ID()
		ans.AnswerMessageID = msgs[1].ID()
	}

	b.logger.Debug("Answer generated",
		zap.String("category", string(c)),
		zap.Int("attempts", attempts),
		zap.Int("answer_chars", utf8.RuneCountInString(text)),
		zap.Int("remaining", ans.Remaining),
	)
	return ans, outcomeAnswered, nil
}

func (b *Broker) validate(question string, c category.Category) (string, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return "", fmt.Errorf("question is empty: %w", domain.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(q); n > b.maxQuestionLen {
		return "", fmt.Errorf("question has %d characters, maximum is %d: %w",
			n, b.maxQuestionLen, domain.ErrInvalidInput)
	}
	if !c.IsValid() {
		return "", fmt.Errorf("answer type %q: %w", c, domain.ErrInvalidInput)
	}
	return q, nil
}

// call sends req, retrying retryable failures. Returns the attempt count with the result.
func (b *Broker) call(ctx context.Context, req generation.Request) (string, int, error) {
	var lastErr error
	attempt := 0
	for attempt < b.maxAttempts {
		if attempt > 0 {
			if err := b.sleep(ctx, b.backoff); err != nil {
				break
			}
			metrics.ProviderRetriesTotal.Inc()
		}
		attempt++

		text, err := b.provider.Send(ctx, req, b.timeout)
		if err == nil {
			return text, attempt, nil
		}
		lastErr = err

		kind, _ := domain.FailureKindOf(err)
		if !kind.Retryable() || ctx.Err() != nil {
			break
		}
		b.logger.Debug("Retrying provider call",
			zap.Int("attempt", attempt),
			zap.String("kind", string(kind)),
		)
	}
	return "", attempt, withAttempts(lastErr, attempt)
}

// withAttempts returns a *domain.ProviderError carrying the attempt count.
// Errors outside the provider contract are classified as transport failures.
func withAttempts(err error, attempts int) error {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		out := *pe
		out.Attempts = attempts
		return &out
	}
	return &domain.ProviderError{Kind: domain.FailureTransport, Attempts: attempts, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
