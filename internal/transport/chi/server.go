package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/studybuddy/internal/domain"
	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	"github.com/kailas-cloud/studybuddy/internal/logger"
	healthuc "github.com/kailas-cloud/studybuddy/internal/usecase/health"
	"github.com/kailas-cloud/studybuddy/internal/usecase/session"
	usageuc "github.com/kailas-cloud/studybuddy/internal/usecase/usage"
)

const (
	maxBodyBytes = 64 << 10

	defaultSessionHeader = "X-Session-ID"
	defaultSessionID     = "default"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the studybuddy HTTP API.
type Server struct {
	sessions      *session.Registry
	usage         *usageuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	sessionHeader string
	defaultID     string
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	sessions *session.Registry,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		sessions:      sessions,
		usage:         usage,
		health:        health,
		logger:        logger,
		sessionHeader: defaultSessionHeader,
		defaultID:     defaultSessionID,
	}
	s.errorHandlers = []errorHandler{
		providerErrorHandler,
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorResponseCodeInvalidInput),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, ErrorResponseCodeQuotaExceeded),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeNotFound),
		sentinelHandler(domain.ErrUnavailable, http.StatusServiceUnavailable, ErrorResponseCodeUnavailable),
	}
	return s
}

// WithSessionHeader sets the header carrying the session id and the id used when it is absent.
func (s *Server) WithSessionHeader(header, defaultID string) *Server {
	if header != "" {
		s.sessionHeader = header
	}
	if defaultID != "" {
		s.defaultID = defaultID
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", s.Ask)
		r.Get("/quota", s.GetQuota)
		r.Get("/conversation", s.GetConversation)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorResponseCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorResponseCodeBadRequest, "method not allowed")
	})
}

// Ask handles POST /api/v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	c := category.ShortForm
	if req.AnswerType != "" {
		parsed, err := category.Parse(req.AnswerType)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeInvalidInput, err.Error())
			return
		}
		c = parsed
	}

	sess, err := s.session(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ans, err := sess.Broker.Ask(r.Context(), req.Question, c)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			s.writeQuotaExceeded(w, sess, c)
			return
		}
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answerToWire(ans))
}

// GetQuota handles GET /api/v1/quota.
func (s *Server) GetQuota(w http.ResponseWriter, r *http.Request) {
	var answerType *string
	if err := runtime.BindQueryParameter("form", true, false, "category", r.URL.Query(), &answerType); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest,
			fmt.Sprintf("Invalid format for parameter category: %s", err))
		return
	}

	var categories []category.Category
	if answerType != nil && *answerType != "" {
		c, err := category.Parse(*answerType)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeInvalidInput, err.Error())
			return
		}
		categories = append(categories, c)
	}

	sess, err := s.session(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := usageToWire(s.usage.GetReport(r.Context(), sess.Tracker, categories...))
	resp.Session = sess.ID
	writeJSON(w, http.StatusOK, resp)
}

// GetConversation handles GET /api/v1/conversation.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	var afterID *int64
	if err := runtime.BindQueryParameter("form", true, false, "after_id", r.URL.Query(), &afterID); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest,
			fmt.Sprintf("Invalid format for parameter after_id: %s", err))
		return
	}
	if afterID != nil && *afterID < 0 {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeInvalidInput, "after_id must not be negative")
		return
	}

	sess, err := s.session(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	var after int64
	if afterID != nil {
		after = *afterID
	}

	resp := ConversationResponse{Items: []MessageResponse{}, LastID: after}
	for m := range sess.Log.After(after) {
		resp.Items = append(resp.Items, messageToWire(m))
		resp.LastID = m.ID()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthToWire(report))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) session(r *http.Request) (*session.Session, error) {
	id := r.Header.Get(s.sessionHeader)
	if id == "" {
		id = s.defaultID
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	return sess, nil
}

func (s *Server) writeQuotaExceeded(w http.ResponseWriter, sess *session.Session, c category.Category) {
	limit := sess.Tracker.Limit(c)
	resetsAt := sess.Tracker.ResetDate().Next(sess.Tracker.Location()).UTC()
	writeJSON(w, http.StatusPaymentRequired, QuotaExceededResponse{
		ErrorResponse: ErrorResponse{
			Code: ErrorResponseCodeQuotaExceeded,
			Message: fmt.Sprintf("You have used all %d %s answers for today. The allowance resets at %s.",
				limit, c.Label(), resetsAt.Format("2006-01-02 15:04 MST")),
		},
		AnswerType: c.String(),
		Limit:      limit,
		ResetsAt:   resetsAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrQuotaExceeded,
		domain.ErrProviderError,
		domain.ErrNotFound,
		domain.ErrUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// providerErrorHandler reports the failure kind; timeouts map to 504.
func providerErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	status := http.StatusBadGateway
	if pe.Kind == domain.FailureTimeout {
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, ProviderErrorResponse{
		ErrorResponse: ErrorResponse{Code: ErrorResponseCodeProviderError, Message: msg},
		Kind:          string(pe.Kind),
		Attempts:      pe.Attempts,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}
