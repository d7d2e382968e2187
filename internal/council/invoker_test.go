package council

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Personaz1/openclaw-council/internal/config"
	"github.com/Personaz1/openclaw-council/internal/llm"
	llmmock "github.com/Personaz1/openclaw-council/internal/llm/mock"
)

type fakeFactory struct {
	provider llm.Provider
	err      error

	mu     sync.Mutex
	builds int
	keys   []string
}

func (f *fakeFactory) Build(name string, cfg config.ProviderConfig, apiKey string, timeout time.Duration) (llm.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	f.keys = append(f.keys, apiKey)
	if f.err != nil {
		return nil, f.err
	}
	return f.provider, nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func staticCredentials(vals map[string]string) CredentialFunc {
	return func(name string) (string, bool) {
		v, ok := vals[name]
		return v, ok && v != ""
	}
}

func newTestInvoker(provider llm.Provider, rt config.RuntimeConfig) (*Invoker, *fakeFactory, *sleepRecorder) {
	factory := &fakeFactory{provider: provider}
	sleeper := &sleepRecorder{}
	inv := &Invoker{
		Providers: map[string]config.ProviderConfig{
			"main": {Type: "openai", BaseURL: "http://mock/v1", Model: "gpt-test", APIKeyEnv: "MAIN_KEY"},
			"local": {Type: "ollama", Model: "llama3"},
		},
		Runtime:     rt,
		Factory:     factory,
		Prompts:     StaticPrompts{"analyst": "You are an analyst.", "synthesizer": "Merge everything.", "local": "Be local."},
		Credentials: staticCredentials(map[string]string{"MAIN_KEY": "secret"}),
		Sleep:       sleeper.Sleep,
		Synthesizer: "synthesizer",
	}
	return inv, factory, sleeper
}

var analyst = config.RoleConfig{Name: "analyst", Provider: "main", PromptFile: "analyst.md"}

func rateLimited() error {
	return llm.NewStatusError("main", http.StatusTooManyRequests, []byte("slow down"))
}

func TestInvokeSendsSystemPromptAndQuery(t *testing.T) {
	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			require.Equal(t, "gpt-test", req.Model)
			require.Len(t, req.Messages, 2)
			require.Equal(t, llm.RoleSystem, req.Messages[0].Role)
			require.Equal(t, "You are an analyst.", req.Messages[0].Content)
			require.Equal(t, llm.RoleUser, req.Messages[1].Role)
			require.Equal(t, "what now?", req.Messages[1].Content)
			require.Equal(t, 1200, req.MaxTokens)
			require.InDelta(t, 0.2, req.Temperature, 1e-9)
			_, hasDeadline := ctx.Deadline()
			require.True(t, hasDeadline)
			return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: "answer"}}, nil
		},
	}
	inv, factory, _ := newTestInvoker(provider, config.DefaultRuntime())

	res := inv.Invoke(context.Background(), analyst, "what now?")
	require.Equal(t, RoleResult{Role: "analyst", Provider: "main", Content: "answer", Outcome: OutcomeOK}, res)
	require.Equal(t, []string{"secret"}, factory.keys)
}

func TestInvokeMissingCredentialMakesNoCalls(t *testing.T) {
	provider := &llmmock.Provider{}
	rt := config.DefaultRuntime()
	rt.AllowMockFallback = true
	inv, factory, _ := newTestInvoker(provider, rt)
	inv.Credentials = staticCredentials(nil)

	res := inv.Invoke(context.Background(), analyst, "q")
	require.True(t, strings.HasPrefix(res.Content, "[ERROR] Missing credential"))
	require.Equal(t, "[ERROR] Missing credential: MAIN_KEY", res.Content)
	require.Equal(t, OutcomeError, res.Outcome)
	require.Zero(t, provider.Calls())
	require.Zero(t, factory.builds)
}

func TestInvokeSkipsCredentialForKeylessProvider(t *testing.T) {
	provider := &llmmock.Provider{}
	inv, _, _ := newTestInvoker(provider, config.DefaultRuntime())
	inv.Credentials = staticCredentials(nil)

	res := inv.Invoke(context.Background(), config.RoleConfig{Name: "local", Provider: "local"}, "q")
	require.Equal(t, "mock", res.Content)
	require.Equal(t, 1, provider.Calls())
}

func TestInvokeRetriesRateLimitWithLinearBackoff(t *testing.T) {
	calls := 0
	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			calls++
			if calls < 3 {
				return llm.ChatResponse{}, rateLimited()
			}
			return llm.ChatResponse{Message: llm.ChatMessage{Content: "finally"}}, nil
		},
	}
	rt := config.DefaultRuntime()
	rt.Retries = 2
	rt.RetryBackoffSec = 1.5
	inv, _, sleeper := newTestInvoker(provider, rt)

	res := inv.Invoke(context.Background(), analyst, "q")
	require.Equal(t, "finally", res.Content)
	require.Equal(t, OutcomeOK, res.Outcome)
	require.Equal(t, 3, provider.Calls())
	require.Equal(t, []time.Duration{1500 * time.Millisecond, 3 * time.Second}, sleeper.delays)
}

func TestInvokeBackoffUsesRealTimer(t *testing.T) {
	calls := 0
	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			calls++
			if calls == 1 {
				return llm.ChatResponse{}, rateLimited()
			}
			return llm.ChatResponse{Message: llm.ChatMessage{Content: "ok"}}, nil
		},
	}
	rt := config.DefaultRuntime()
	rt.Retries = 1
	rt.RetryBackoffSec = 0.05
	inv, _, _ := newTestInvoker(provider, rt)
	inv.Sleep = nil

	start := time.Now()
	res := inv.Invoke(context.Background(), analyst, "q")
	elapsed := time.Since(start)

	require.Equal(t, "ok", res.Content)
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second)
}

func TestInvokeStopsOnNonRetriableError(t *testing.T) {
	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, llm.NewStatusError("main", http.StatusUnauthorized, []byte("bad key"))
		},
	}
	rt := config.DefaultRuntime()
	rt.Retries = 4
	inv, _, sleeper := newTestInvoker(provider, rt)

	res := inv.Invoke(context.Background(), analyst, "q")
	require.Equal(t, "[ERROR] main: HTTP 401: bad key", res.Content)
	require.Equal(t, 1, provider.Calls())
	require.Empty(t, sleeper.delays)
}

func TestInvokeExhaustedRetriesWithoutFallback(t *testing.T) {
	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, rateLimited()
		},
	}
	rt := config.DefaultRuntime()
	rt.Retries = 2
	inv, _, sleeper := newTestInvoker(provider, rt)

	res := inv.Invoke(context.Background(), analyst, "q")
	require.True(t, strings.HasPrefix(res.Content, ErrorPrefix))
	require.Contains(t, res.Content, "HTTP 429")
	require.Equal(t, 3, provider.Calls())
	require.Len(t, sleeper.delays, 2)
}

func TestInvokeExhaustedRetriesWithFallback(t *testing.T) {
	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, rateLimited()
		},
	}
	rt := config.DefaultRuntime()
	rt.Retries = 1
	rt.AllowMockFallback = true
	inv, _, _ := newTestInvoker(provider, rt)

	res := inv.Invoke(context.Background(), analyst, "which stack?")
	require.False(t, strings.HasPrefix(res.Content, ErrorPrefix))
	require.True(t, strings.HasPrefix(res.Content, "[MOCK:analyst]"))
	require.Contains(t, res.Content, "which stack?")
	require.Equal(t, OutcomeFallback, res.Outcome)
	require.False(t, res.Failed())

	again := inv.Invoke(context.Background(), analyst, "which stack?")
	require.Equal(t, res.Content, again.Content, "placeholder must be deterministic")
}

func TestInvokeSynthesizerFallbackIsStructured(t *testing.T) {
	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, llm.NewTransportError("main", errors.New("connection reset"))
		},
	}
	rt := config.DefaultRuntime()
	rt.AllowMockFallback = true
	inv, _, _ := newTestInvoker(provider, rt)

	res := inv.Invoke(context.Background(), config.RoleConfig{Name: "synthesizer", Provider: "main"}, "{}")
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content), &payload))
	require.Contains(t, payload["final_answer"], "[MOCK:synthesizer]")
	require.Equal(t, 1, provider.Calls())
}

func TestInvokePromptFailureSkipsCall(t *testing.T) {
	provider := &llmmock.Provider{}
	rt := config.DefaultRuntime()
	rt.AllowMockFallback = true
	inv, _, _ := newTestInvoker(provider, rt)

	res := inv.Invoke(context.Background(), config.RoleConfig{Name: "ghost", Provider: "main"}, "q")
	require.True(t, strings.HasPrefix(res.Content, "[ERROR] load prompt"))
	require.Zero(t, provider.Calls())
}

func TestInvokeUnknownProvider(t *testing.T) {
	inv, _, _ := newTestInvoker(&llmmock.Provider{}, config.DefaultRuntime())
	res := inv.Invoke(context.Background(), config.RoleConfig{Name: "analyst", Provider: "nowhere"}, "q")
	require.Equal(t, `[ERROR] unknown provider "nowhere"`, res.Content)
}

func TestInvokeRecoversPanic(t *testing.T) {
	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			panic("provider exploded")
		},
	}
	core, logs := observer.New(zap.ErrorLevel)
	inv, _, _ := newTestInvoker(provider, config.DefaultRuntime())
	inv.Logger = zap.New(core)

	res := inv.Invoke(context.Background(), analyst, "q")
	require.Equal(t, "[ERROR] panic: provider exploded", res.Content)
	require.Equal(t, 1, logs.FilterMessage("role invocation panicked").Len())
}

func TestEnvCredentialsTreatsEmptyAsMissing(t *testing.T) {
	t.Setenv("COUNCIL_TEST_EMPTY_KEY", "")
	t.Setenv("COUNCIL_TEST_SET_KEY", "abc")

	_, ok := EnvCredentials("COUNCIL_TEST_EMPTY_KEY")
	require.False(t, ok)
	v, ok := EnvCredentials("COUNCIL_TEST_SET_KEY")
	require.True(t, ok)
	require.Equal(t, "abc", v)
}
