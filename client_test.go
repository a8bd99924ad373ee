package studybuddy

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/studybuddy/internal/db/memory"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls []Request
	fn    func(ctx context.Context, req Request) (string, error)
}

func (p *fakeProvider) Generate(ctx context.Context, req Request) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
	if p.fn != nil {
		return p.fn(ctx, req)
	}
	return "answer: " + req.Prompt[:10], nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestClient(t *testing.T, p Provider, opts ...Option) *Client {
	t.Helper()
	c, err := New(context.Background(), append([]Option{WithProvider(p)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNew_NoProvider(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected error when no provider configured")
	}
}

func TestNew_InvalidSession(t *testing.T) {
	_, err := New(context.Background(), WithProvider(&fakeProvider{}), WithSession("has space"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNew_InvalidLimits(t *testing.T) {
	if _, err := New(context.Background(), WithProvider(&fakeProvider{}), WithLimits(0, 2)); err == nil {
		t.Fatal("expected error for zero limit")
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	if _, _, err := createStore(&clientConfig{driver: "unknown"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}
	for _, o := range []Option{
		WithRedis("localhost:6379", "pw"),
		WithSession("tab-1"),
		WithKeyPrefix("sb:"),
		WithOpenAICompatible("key", "http://localhost:8000/v1", "local-model"),
		WithLimits(5, 1),
		WithTimeout(3 * time.Second),
		WithRetry(3, time.Second),
		WithFailurePlaceholder("try later"),
		WithPersona("You grade %s papers.", "VTU"),
	} {
		o.apply(cfg)
	}

	if cfg.driver != "redis" || cfg.addrs[0] != "localhost:6379" || cfg.password != "pw" {
		t.Errorf("unexpected store config %+v", cfg)
	}
	if cfg.sessionID != "tab-1" || cfg.keyPrefix != "sb:" {
		t.Errorf("unexpected session config %q %q", cfg.sessionID, cfg.keyPrefix)
	}
	if cfg.apiKey != "key" || cfg.baseURL != "http://localhost:8000/v1" || cfg.model != "local-model" {
		t.Errorf("unexpected provider config %+v", cfg)
	}
	if cfg.shortFormLimit != 5 || cfg.longFormLimit != 1 {
		t.Errorf("unexpected limits %d/%d", cfg.shortFormLimit, cfg.longFormLimit)
	}
	if cfg.maxAttempts != 3 || cfg.retryBackoff != time.Second || cfg.timeout != 3*time.Second {
		t.Errorf("unexpected broker policy %+v", cfg)
	}
	if cfg.placeholder != "try later" || cfg.evaluationStyle != "VTU" {
		t.Errorf("unexpected prompt config %+v", cfg)
	}
}

func TestParseAnswerType(t *testing.T) {
	for in, want := range map[string]AnswerType{
		"short_form": ShortForm, "2mark": ShortForm, "16-mark": LongForm, "LONG": LongForm,
	} {
		got, err := ParseAnswerType(in)
		if err != nil || got != want {
			t.Errorf("ParseAnswerType(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseAnswerType("essay"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if LongForm.Label() != "16-mark" {
		t.Errorf("unexpected label %q", LongForm.Label())
	}
}

func TestClient_AskUntilExhausted(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, p)
	ctx := context.Background()

	for i := range 3 {
		ans, err := c.Ask(ctx, "What is a deadlock?", ShortForm)
		if err != nil {
			t.Fatalf("ask %d: %v", i, err)
		}
		if ans.Remaining != 2-i {
			t.Errorf("ask %d: expected remaining %d, got %d", i, 2-i, ans.Remaining)
		}
		if ans.AnswerID != ans.QuestionID+1 {
			t.Errorf("ask %d: expected adjacent ids, got %d/%d", i, ans.QuestionID, ans.AnswerID)
		}
	}

	_, err := c.Ask(ctx, "One more?", ShortForm)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if p.callCount() != 3 {
		t.Errorf("expected 3 provider calls, got %d", p.callCount())
	}
	if c.Remaining(ShortForm) != 0 || c.Remaining(LongForm) != 2 {
		t.Errorf("unexpected remaining %d/%d", c.Remaining(ShortForm), c.Remaining(LongForm))
	}
	if n := len(c.Conversation()); n != 6 {
		t.Errorf("expected 6 messages, got %d", n)
	}
}

func TestClient_ComposedRequest(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, p, WithPersona("You coach %s students.", "VTU"))

	if _, err := c.Ask(context.Background(), "Define entropy.", LongForm); err != nil {
		t.Fatalf("ask: %v", err)
	}
	req := p.calls[0]
	if req.AnswerType != LongForm || req.MaxOutputTokens != 1024 {
		t.Errorf("unexpected request %+v", req)
	}
	if req.System != "You coach VTU students." {
		t.Errorf("unexpected persona %q", req.System)
	}
	if !strings.Contains(req.Prompt, "Question: Define entropy.") || !strings.Contains(req.Prompt, "16-mark") {
		t.Errorf("unexpected prompt %q", req.Prompt)
	}
}

func TestClient_ProviderFailureKeepsAllowance(t *testing.T) {
	p := &fakeProvider{fn: func(context.Context, Request) (string, error) {
		return "", NewProviderError(FailureUpstreamRejected, 400, errors.New("bad key"))
	}}
	c := newTestClient(t, p, WithFailurePlaceholder("Please try again."))

	_, err := c.Ask(context.Background(), "Explain TCP.", LongForm)
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if pe.Kind != FailureUpstreamRejected || pe.Attempts != 1 {
		t.Errorf("unexpected failure %+v", pe)
	}
	if c.Remaining(LongForm) != 2 {
		t.Errorf("expected allowance restored, got %d", c.Remaining(LongForm))
	}

	msgs := c.Conversation()
	if len(msgs) != 2 {
		t.Fatalf("expected question and placeholder, got %+v", msgs)
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" || !msgs[1].Failed {
		t.Errorf("unexpected messages %+v", msgs)
	}
}

func TestClient_PlainErrorsAreRetriedAsTransport(t *testing.T) {
	p := &fakeProvider{fn: func(context.Context, Request) (string, error) {
		return "", errors.New("connection reset")
	}}
	c := newTestClient(t, p, WithRetry(2, time.Millisecond))

	_, err := c.Ask(context.Background(), "q", ShortForm)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != FailureTransport {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if p.callCount() != 2 || pe.Attempts != 2 {
		t.Errorf("expected 2 attempts, got calls=%d attempts=%d", p.callCount(), pe.Attempts)
	}
}

func TestClient_EmptyTextIsMalformed(t *testing.T) {
	p := &fakeProvider{fn: func(context.Context, Request) (string, error) { return "  \n", nil }}
	c := newTestClient(t, p)

	_, err := c.Ask(context.Background(), "q", ShortForm)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != FailureMalformedResponse {
		t.Fatalf("expected malformed response, got %v", err)
	}
	if p.callCount() != 1 {
		t.Errorf("malformed responses must not be retried, got %d calls", p.callCount())
	}
}

func TestClient_Timeout(t *testing.T) {
	p := &fakeProvider{fn: func(ctx context.Context, _ Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	c := newTestClient(t, p, WithTimeout(20*time.Millisecond), WithRetry(1, 0))

	_, err := c.Ask(context.Background(), "q", ShortForm)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != FailureTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if c.Remaining(ShortForm) != 3 {
		t.Errorf("expected allowance restored, got %d", c.Remaining(ShortForm))
	}
}

func TestClient_InvalidInput(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, p)

	if _, err := c.Ask(context.Background(), "   ", ShortForm); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank question, got %v", err)
	}
	if _, err := c.Ask(context.Background(), "q", AnswerType("essay")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown type, got %v", err)
	}
	if p.callCount() != 0 || len(c.Conversation()) != 0 {
		t.Error("invalid input must not reach the provider or the conversation")
	}
}

func TestClient_AllowancePersistsAcrossClients(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	first := newTestClient(t, &fakeProvider{}, withStore(store), WithSession("phone"))
	if _, err := first.Ask(ctx, "q", LongForm); err != nil {
		t.Fatalf("ask: %v", err)
	}

	again := newTestClient(t, &fakeProvider{}, withStore(store), WithSession("phone"))
	if got := again.Remaining(LongForm); got != 1 {
		t.Errorf("expected stored allowance 1, got %d", got)
	}

	other := newTestClient(t, &fakeProvider{}, withStore(store), WithSession("laptop"))
	if got := other.Remaining(LongForm); got != 2 {
		t.Errorf("expected fresh allowance for another session, got %d", got)
	}

	if err := again.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}

type unreachableStore struct{ *memory.Store }

func (unreachableStore) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, errors.New("connection reset by peer")
}

func TestNew_StoredAllowanceUnreadable(t *testing.T) {
	_, err := New(context.Background(),
		WithProvider(&fakeProvider{}), withStore(unreachableStore{memory.NewStore()}))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_Usage(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	c := newTestClient(t, &fakeProvider{}, WithLimits(4, 1), WithTimezone(loc))
	if _, err := c.Ask(context.Background(), "q", ShortForm); err != nil {
		t.Fatalf("ask: %v", err)
	}

	u := c.Usage(context.Background())
	if u.ResetDate != time.Now().In(loc).Format("2006-01-02") {
		t.Errorf("unexpected reset date %q", u.ResetDate)
	}
	if len(u.Budgets) != 2 {
		t.Fatalf("expected 2 budgets, got %d", len(u.Budgets))
	}
	short := u.Budgets[0]
	if short.AnswerType != ShortForm || short.Limit != 4 || short.Used != 1 || short.Remaining != 3 {
		t.Errorf("unexpected short budget %+v", short)
	}
	if !u.ResetsAt.After(time.Now()) {
		t.Errorf("resets_at must be in the future, got %s", u.ResetsAt)
	}
}

func TestClient_Prometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := newTestClient(t, &fakeProvider{}, WithPrometheus(reg))
	b := newTestClient(t, &fakeProvider{}, WithPrometheus(reg), WithLimits(1, 1))

	ctx := context.Background()
	_, _ = a.Ask(ctx, "q", ShortForm)
	_, _ = b.Ask(ctx, "q", ShortForm)
	_, _ = b.Ask(ctx, "q", ShortForm)

	ops := a.obs.metrics.operations
	if got := testutil.ToFloat64(ops.WithLabelValues("ask", "ok")); got != 2 {
		t.Errorf("expected 2 ok asks, got %v", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("ask", "quota_exceeded")); got != 1 {
		t.Errorf("expected 1 denied ask, got %v", got)
	}
	if b.obs.metrics.operations != ops {
		t.Error("second client should reuse the registered collector")
	}
}
