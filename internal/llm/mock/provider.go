package mock

import (
	"context"
	"sync/atomic"

	"github.com/Personaz1/openclaw-council/internal/llm"
)

// Provider is a test double implementing llm.Provider. It counts calls.
type Provider struct {
	NameValue string
	ChatFn    func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)

	calls atomic.Int64
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	p.calls.Add(1)
	if p.ChatFn != nil {
		return p.ChatFn(ctx, req)
	}
	return llm.ChatResponse{
		Message: llm.ChatMessage{
			Role:    llm.RoleAssistant,
			Content: "mock",
		},
	}, nil
}

// Calls returns how many times Chat was invoked.
func (p *Provider) Calls() int {
	return int(p.calls.Load())
}
