package studybuddy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain"
	"github.com/kailas-cloud/studybuddy/internal/domain/answer"
	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	"github.com/kailas-cloud/studybuddy/internal/domain/generation"
	"github.com/kailas-cloud/studybuddy/internal/domain/message"
	domusage "github.com/kailas-cloud/studybuddy/internal/domain/usage"
)

// AnswerType selects the shape of an answer and the allowance it draws from.
type AnswerType string

// Answer types.
const (
	ShortForm AnswerType = AnswerType(category.ShortForm)
	LongForm  AnswerType = AnswerType(category.LongForm)
)

// ParseAnswerType accepts wire names and aliases such as "2mark" or "16-mark".
func ParseAnswerType(s string) (AnswerType, error) {
	c, err := category.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return AnswerType(c), nil
}

// Label returns the exam name of the answer type ("2-mark", "16-mark").
func (t AnswerType) Label() string { return category.Category(t).Label() }

// Answer is a successful reply.
type Answer struct {
	Text       string
	AnswerType AnswerType
	QuestionID int64 // conversation id of the question
	AnswerID   int64 // conversation id of the answer
	Attempts   int
	Remaining  int // answers of this type left today
}

// Message is one conversation entry.
type Message struct {
	ID         int64
	Role       string // "user" or "assistant"
	Text       string
	AnswerType AnswerType
	Failed     bool // assistant placeholder for a failed answer
	CreatedAt  time.Time
}

// Budget is the daily allowance of one answer type.
type Budget struct {
	AnswerType AnswerType
	Limit      int
	Used       int
	Remaining  int
	Exhausted  bool
	ResetsAt   time.Time
}

// Usage is the quota status of the client's session.
type Usage struct {
	ResetDate string // YYYY-MM-DD the counters were last zeroed
	ResetsAt  time.Time
	Budgets   []Budget
}

// Request is a composed prompt handed to a custom Provider.
type Request struct {
	AnswerType      AnswerType
	System          string
	Prompt          string
	MaxOutputTokens int
	Temperature     float32
	TopK            int
	TopP            float32
}

// Provider generates answer text. Implementations may return NewProviderError
// to classify failures; other errors count as transport failures.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// providerAdapter bridges a public Provider to the broker.
type providerAdapter struct {
	inner Provider
}

func (a *providerAdapter) Send(ctx context.Context, req generation.Request, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, err := a.inner.Generate(ctx, Request{
		AnswerType:      AnswerType(req.Category),
		System:          req.System,
		Prompt:          req.Prompt,
		MaxOutputTokens: req.Params.MaxOutputTokens,
		Temperature:     req.Params.Temperature,
		TopK:            req.Params.TopK,
		TopP:            req.Params.TopP,
	})
	if err != nil {
		var pe *domain.ProviderError
		switch {
		case errors.As(err, &pe):
			return "", err
		case ctx.Err() != nil:
			return "", domain.NewProviderError(domain.FailureTimeout, 0, err)
		default:
			return "", domain.NewProviderError(domain.FailureTransport, 0, err)
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.NewProviderError(domain.FailureMalformedResponse, 0, errors.New("empty answer text"))
	}
	return text, nil
}

func (a *providerAdapter) HealthCheck(ctx context.Context) error {
	if hc, ok := a.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // caller wraps
	}
	return nil
}

func answerFromDomain(a answer.Answer) Answer {
	return Answer{
		Text:       a.Text,
		AnswerType: AnswerType(a.Category),
		QuestionID: a.QuestionMessageID,
		AnswerID:   a.AnswerMessageID,
		Attempts:   a.Attempts,
		Remaining:  a.Remaining,
	}
}

func messageFromDomain(m message.Message) Message {
	return Message{
		ID:         m.ID(),
		Role:       string(m.Role()),
		Text:       m.Text(),
		AnswerType: AnswerType(m.Category()),
		Failed:     m.Failed(),
		CreatedAt:  m.CreatedAt(),
	}
}

func usageFromDomain(r domusage.Report) Usage {
	u := Usage{
		ResetDate: r.ResetDate(),
		ResetsAt:  time.UnixMilli(r.PeriodEnd()).UTC(),
		Budgets:   make([]Budget, len(r.Budgets())),
	}
	for i, b := range r.Budgets() {
		u.Budgets[i] = Budget{
			AnswerType: AnswerType(b.Category()),
			Limit:      b.Limit(),
			Used:       b.Used(),
			Remaining:  b.Remaining(),
			Exhausted:  b.IsExhausted(),
			ResetsAt:   time.UnixMilli(b.ResetsAt()).UTC(),
		}
	}
	return u
}
