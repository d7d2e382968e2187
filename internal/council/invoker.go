package council

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Personaz1/openclaw-council/internal/config"
	"github.com/Personaz1/openclaw-council/internal/llm"
)

// CredentialFunc resolves a credential by environment variable name.
type CredentialFunc func(envName string) (string, bool)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ProviderFactory builds a provider client for one role call.
type ProviderFactory interface {
	Build(name string, cfg config.ProviderConfig, apiKey string, timeout time.Duration) (llm.Provider, error)
}

// Metrics receives pipeline measurements. Implementations must be safe for concurrent use.
type Metrics interface {
	RecordRoleCall(role, provider string, duration time.Duration, err error)
	RecordRetry(role string)
	RecordTokens(role string, tokens int)
	RecordStageResult(stage, role, outcome string)
	RecordRun(duration time.Duration, degraded int)
}

// EnvCredentials reads the process environment; an empty value counts as missing.
func EnvCredentials(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Invoker runs a single role call with retry and fallback policy. It holds no
// mutable state and is safe to use from many goroutines.
type Invoker struct {
	Providers   map[string]config.ProviderConfig
	Runtime     config.RuntimeConfig
	Factory     ProviderFactory
	Prompts     PromptLoader
	Credentials CredentialFunc // nil uses EnvCredentials
	Sleep       SleepFunc      // nil waits on a timer
	// Synthesizer names the role whose fallback placeholder is a structured verdict.
	Synthesizer string
	Logger      *zap.Logger
	Metrics     Metrics
}

// Invoke calls the role's provider with the role prompt as system message and
// query as user message. It never fails: every error becomes result content.
func (inv *Invoker) Invoke(ctx context.Context, role config.RoleConfig, query string) (res RoleResult) {
	logger := inv.logger().With(zap.String("role", role.Name), zap.String("provider", role.Provider))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("role invocation panicked", zap.Any("panic", r))
			res = errorResult(role, "panic: %v", r)
		}
	}()

	pcfg, ok := inv.Providers[role.Provider]
	if !ok {
		return errorResult(role, "unknown provider %q", role.Provider)
	}

	var apiKey string
	if pcfg.APIKeyEnv != "" {
		key, ok := inv.credentials()(pcfg.APIKeyEnv)
		if !ok {
			logger.Warn("credential missing", zap.String("env", pcfg.APIKeyEnv))
			return errorResult(role, "Missing credential: %s", pcfg.APIKeyEnv)
		}
		apiKey = key
	}

	if inv.Prompts == nil {
		return errorResult(role, "load prompt: no prompt loader configured")
	}
	systemPrompt, err := inv.Prompts.Load(role)
	if err != nil {
		return errorResult(role, "load prompt: %v", err)
	}

	if inv.Factory == nil {
		return errorResult(role, "build provider: no provider factory configured")
	}
	provider, err := inv.Factory.Build(role.Provider, pcfg, apiKey, inv.Runtime.Timeout())
	if err != nil {
		return errorResult(role, "build provider: %v", err)
	}

	req := llm.ChatRequest{
		Model: pcfg.Model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: query},
		},
		MaxTokens:   inv.Runtime.MaxTokens,
		Temperature: inv.Runtime.Temperature,
	}

	content, err := inv.callWithRetry(ctx, logger, role, provider, req)
	if err == nil {
		return RoleResult{Role: role.Name, Provider: role.Provider, Content: content, Outcome: OutcomeOK}
	}

	if inv.Runtime.AllowMockFallback {
		logger.Warn("role failed, using mock fallback", zap.Error(err))
		return RoleResult{
			Role:     role.Name,
			Provider: role.Provider,
			Content:  placeholder(role.Name, inv.Synthesizer, query),
			Outcome:  OutcomeFallback,
		}
	}

	logger.Warn("role failed", zap.Error(err))
	return errorResult(role, "%v", err)
}

// callWithRetry retries rate-limited calls only, waiting backoff*k before attempt k.
func (inv *Invoker) callWithRetry(ctx context.Context, logger *zap.Logger, role config.RoleConfig, provider llm.Provider, req llm.ChatRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= inv.Runtime.Retries; attempt++ {
		if attempt > 0 {
			delay := inv.Runtime.Backoff(attempt)
			logger.Info("retrying rate-limited call",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if inv.Metrics != nil {
				inv.Metrics.RecordRetry(role.Name)
			}
			if err := inv.sleep()(ctx, delay); err != nil {
				return "", fmt.Errorf("%w (retry aborted: %v)", lastErr, err)
			}
		}

		resp, err := inv.call(ctx, role, provider, req)
		if err == nil {
			return resp.Message.Content, nil
		}
		lastErr = err
		if !llm.IsRateLimited(err) {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return "", lastErr
}

func (inv *Invoker) call(ctx context.Context, role config.RoleConfig, provider llm.Provider, req llm.ChatRequest) (llm.ChatResponse, error) {
	if timeout := inv.Runtime.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := provider.Chat(ctx, req)
	if inv.Metrics != nil {
		inv.Metrics.RecordRoleCall(role.Name, role.Provider, time.Since(start), err)
		if err == nil {
			inv.Metrics.RecordTokens(role.Name, resp.Usage.TotalTokens)
		}
	}
	return resp, err
}

func (inv *Invoker) credentials() CredentialFunc {
	if inv.Credentials != nil {
		return inv.Credentials
	}
	return EnvCredentials
}

func (inv *Invoker) sleep() SleepFunc {
	if inv.Sleep != nil {
		return inv.Sleep
	}
	return timerSleep
}

func (inv *Invoker) logger() *zap.Logger {
	if inv.Logger != nil {
		return inv.Logger
	}
	return zap.NewNop()
}
