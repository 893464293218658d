package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personabot/pkg/llm"
)

type capturedRequest struct {
	Auth string
	Body map[string]any
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []capturedRequest
	respond  func(req capturedRequest) (int, string)
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	req := capturedRequest{Auth: r.Header.Get("Authorization"), Body: body}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	status, payload := f.respond(req)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

func completion(content string) string {
	data, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 0,
		"model":   "test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(data)
}

const errorBody = `{"error":{"message":"nope","type":"error"}}`

func newTestClient(t *testing.T, provider *fakeProvider, keys string, models ...string) *Client {
	t.Helper()
	server := httptest.NewServer(provider)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, APIKeys: keys, Models: models}, nil)
	require.NoError(t, err)
	return client
}

func TestGenerate(t *testing.T) {
	provider := &fakeProvider{respond: func(capturedRequest) (int, string) {
		return http.StatusOK, completion("Hi! ✨")
	}}
	client := newTestClient(t, provider, "key-a", "model-a")

	got, err := client.Generate(context.Background(), "Say hi", llm.Options{Temperature: 0.8, MaxOutputTokens: 1000})
	require.NoError(t, err)
	assert.Equal(t, "Hi! ✨", got)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.Equal(t, "Bearer key-a", req.Auth)
	assert.Equal(t, "model-a", req.Body["model"])
	assert.InDelta(t, 0.8, req.Body["temperature"], 0.0001)
	assert.EqualValues(t, 1000, req.Body["max_tokens"])

	messages := req.Body["messages"].([]any)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "Say hi", msg["content"])
}

func TestGenerate_RotatesKeyOnRateLimit(t *testing.T) {
	provider := &fakeProvider{respond: func(req capturedRequest) (int, string) {
		if req.Auth == "Bearer key-a" {
			return http.StatusTooManyRequests, errorBody
		}
		return http.StatusOK, completion("from key b")
	}}
	client := newTestClient(t, provider, "key-a, key-b", "model-a")

	got, err := client.Generate(context.Background(), "hello", llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "from key b", got)

	require.Len(t, provider.requests, 2)
	assert.Equal(t, "Bearer key-a", provider.requests[0].Auth)
	assert.Equal(t, "Bearer key-b", provider.requests[1].Auth)

	// The failing key is now penalised, so the next call starts with key b.
	_, err = client.Generate(context.Background(), "again", llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer key-b", provider.requests[2].Auth)
}

func TestGenerate_FallsBackToNextModel(t *testing.T) {
	provider := &fakeProvider{respond: func(req capturedRequest) (int, string) {
		if req.Body["model"] == "model-a" {
			return http.StatusInternalServerError, errorBody
		}
		return http.StatusOK, completion("from model b")
	}}
	client := newTestClient(t, provider, "key-a", "model-a", "model-b")

	got, err := client.Generate(context.Background(), "hello", llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "from model b", got)
	assert.Len(t, provider.requests, 2)
}

func TestGenerate_AllModelsExhausted(t *testing.T) {
	provider := &fakeProvider{respond: func(capturedRequest) (int, string) {
		return http.StatusInternalServerError, errorBody
	}}
	client := newTestClient(t, provider, "key-a", "model-a", "model-b")

	_, err := client.Generate(context.Background(), "hello", llm.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all completion models exhausted")
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{APIKeys: " , ", Models: []string{"m"}}, nil)
	assert.True(t, errors.Is(err, ErrNoKeys))

	_, err = NewClient(Config{APIKeys: "k"}, nil)
	assert.Error(t, err)
}

func TestIsRateLimitOrAuthError(t *testing.T) {
	assert.True(t, isRateLimitOrAuthError(errors.New("429 Too Many Requests")))
	assert.True(t, isRateLimitOrAuthError(errors.New("Unauthorized")))
	assert.False(t, isRateLimitOrAuthError(errors.New("connection reset")))
}

func TestGetClient_ReusesClientPerKey(t *testing.T) {
	client, err := NewClient(Config{APIKeys: "key-a,key-b", Models: []string{"model-a"}}, nil)
	require.NoError(t, err)

	first := client.getClient("key-a")
	assert.Same(t, first, client.getClient("key-a"))
	assert.NotSame(t, first, client.getClient("key-b"))
}
