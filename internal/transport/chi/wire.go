package chi

import (
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/answer"
	"github.com/kailas-cloud/studybuddy/internal/domain/message"
	domusage "github.com/kailas-cloud/studybuddy/internal/domain/usage"
	healthuc "github.com/kailas-cloud/studybuddy/internal/usecase/health"
)

// ErrorResponseCode is the machine-readable error code of an API error.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest    ErrorResponseCode = "bad_request"
	ErrorResponseCodeInvalidInput  ErrorResponseCode = "invalid_input"
	ErrorResponseCodeQuotaExceeded ErrorResponseCode = "quota_exceeded"
	ErrorResponseCodeProviderError ErrorResponseCode = "provider_error"
	ErrorResponseCodeNotFound      ErrorResponseCode = "not_found"
	ErrorResponseCodeUnavailable   ErrorResponseCode = "unavailable"
	ErrorResponseCodeInternalError ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// ProviderErrorResponse adds the failure classification to a provider error.
type ProviderErrorResponse struct {
	ErrorResponse
	Kind     string `json:"kind"`
	Attempts int    `json:"attempts,omitempty"`
}

// QuotaExceededResponse is the user-facing notice for an exhausted allowance.
type QuotaExceededResponse struct {
	ErrorResponse
	AnswerType string    `json:"answer_type"`
	Limit      int       `json:"limit"`
	ResetsAt   time.Time `json:"resets_at"`
}

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	Question   string `json:"question"`
	AnswerType string `json:"answer_type,omitempty"` // defaults to short_form
}

// AskResponse is a successful answer.
type AskResponse struct {
	Answer            string `json:"answer"`
	AnswerType        string `json:"answer_type"`
	QuestionMessageID int64  `json:"question_message_id"`
	AnswerMessageID   int64  `json:"answer_message_id"`
	Attempts          int    `json:"attempts"`
	Remaining         int    `json:"remaining"`
}

// BudgetStatus is the allowance of one answer type.
type BudgetStatus struct {
	AnswerType  string    `json:"answer_type"`
	Label       string    `json:"label"`
	Limit       int       `json:"limit"`
	Used        int       `json:"used"`
	Remaining   int       `json:"remaining"`
	IsExhausted bool      `json:"is_exhausted"`
	ResetsAt    time.Time `json:"resets_at"`
}

// UsageResponse is the body of GET /api/v1/quota.
type UsageResponse struct {
	Session   string         `json:"session"`
	ResetDate string         `json:"reset_date"`
	ResetsAt  time.Time      `json:"resets_at"`
	Budgets   []BudgetStatus `json:"budgets"`
}

// MessageResponse is one conversation entry.
type MessageResponse struct {
	ID         int64     `json:"id"`
	Role       string    `json:"role"`
	Text       string    `json:"text"`
	AnswerType string    `json:"answer_type,omitempty"`
	Failed     bool      `json:"failed,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationResponse is the body of GET /api/v1/conversation.
type ConversationResponse struct {
	Items  []MessageResponse `json:"items"`
	LastID int64             `json:"last_id"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func answerToWire(a answer.Answer) AskResponse {
	return AskResponse{
		Answer:            a.Text,
		AnswerType:        a.Category.String(),
		QuestionMessageID: a.QuestionMessageID,
		AnswerMessageID:   a.AnswerMessageID,
		Attempts:          a.Attempts,
		Remaining:         a.Remaining,
	}
}

func usageToWire(r domusage.Report) UsageResponse {
	budgets := make([]BudgetStatus, len(r.Budgets()))
	for i, b := range r.Budgets() {
		budgets[i] = BudgetStatus{
			AnswerType:  b.Category().String(),
			Label:       b.Category().Label(),
			Limit:       b.Limit(),
			Used:        b.Used(),
			Remaining:   b.Remaining(),
			IsExhausted: b.IsExhausted(),
			ResetsAt:    time.UnixMilli(b.ResetsAt()).UTC(),
		}
	}
	return UsageResponse{
		Session:   r.Session(),
		ResetDate: r.ResetDate(),
		ResetsAt:  time.UnixMilli(r.PeriodEnd()).UTC(),
		Budgets:   budgets,
	}
}

func messageToWire(m message.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID(),
		Role:       string(m.Role()),
		Text:       m.Text(),
		AnswerType: m.Category().String(),
		Failed:     m.Failed(),
		CreatedAt:  m.CreatedAt(),
	}
}

func healthToWire(r healthuc.Report) HealthResponse {
	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	return HealthResponse{Status: string(r.Status), Checks: checks}
}
