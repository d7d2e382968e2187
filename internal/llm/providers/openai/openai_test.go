package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Personaz1/openclaw-council/internal/llm"
)

func TestChatSendsRequestAndParsesResponse(t *testing.T) {
	t.Parallel()

	p := NewProvider("openai", "http://mock/v1/", "key", 5*time.Second, WithTransport(
		roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/v1/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer key", r.Header.Get("Authorization"))

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			var reqBody map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &reqBody))
			require.Equal(t, "gpt-4o-mini", reqBody["model"])
			require.EqualValues(t, 1200, reqBody["max_tokens"])
			require.EqualValues(t, 0.2, reqBody["temperature"])
			require.Len(t, reqBody["messages"], 2)

			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body: io.NopCloser(strings.NewReader(`{
					"choices": [{
						"index": 0,
						"finish_reason": "stop",
						"message": {"role": "assistant", "content": "hello"}
					}],
					"usage": {"prompt_tokens": 1, "completion_tokens": 2, "total_tokens": 3}
				}`)),
			}, nil
		}),
	))

	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: "be brief"},
			{Role: llm.RoleUser, Content: "hi"},
		},
		MaxTokens:   1200,
		Temperature: 0.2,
	})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Message.Content)
	require.Equal(t, "stop", resp.FinishReason)
	require.Equal(t, 3, resp.Usage.TotalTokens)
}

func TestChatClassifiesRateLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	t.Cleanup(srv.Close)

	p := NewProvider("openrouter", srv.URL, "key", time.Second)
	_, err := p.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	require.Error(t, err)
	require.True(t, llm.IsRateLimited(err))

	var pe *llm.ProviderError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	require.Contains(t, pe.Body, "quota")
}

func TestChatReportsEmptyChoices(t *testing.T) {
	t.Parallel()

	p := NewProvider("openai", "http://mock", "", 0, WithTransport(
		roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Empty(t, r.Header.Get("Authorization"))
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"choices": []}`)),
			}, nil
		}),
	))

	_, err := p.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	require.ErrorContains(t, err, "empty choices")
	require.False(t, llm.IsRateLimited(err))
}

func TestChatWrapsTransportFailure(t *testing.T) {
	t.Parallel()

	p := NewProvider("openai", "http://mock", "key", 0, WithTransport(
		roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}),
	))

	_, err := p.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	var pe *llm.ProviderError
	require.True(t, errors.As(err, &pe))
	require.Zero(t, pe.StatusCode)
	require.Contains(t, err.Error(), "connection refused")
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestZeroTimeoutMeansNoClientDeadline(t *testing.T) {
	require.Zero(t, NewProvider("openai", "", "key", 0).client.Timeout)
	require.Zero(t, NewProvider("openai", "", "key", -time.Second).client.Timeout)
	require.Equal(t, 5*time.Second, NewProvider("openai", "", "key", 5*time.Second).client.Timeout)
}
