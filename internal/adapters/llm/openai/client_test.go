package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprookie/aigdb/internal/ports"
)

func TestCompleteSendsMessagesAndTools(t *testing.T) {
	t.Parallel()

	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"the stack points at frame 0"}}]}`))
	}))
	t.Cleanup(server.Close)

	client := &Client{
		BaseURL:    server.URL + "/v1",
		APIKey:     "sk-test",
		HTTPClient: server.Client(),
	}

	reply, err := client.Complete(context.Background(),
		[]ports.ChatMessage{
			{Role: ports.RoleSystem, Content: "you analyze core dumps"},
			{Role: ports.RoleUser, Content: "what crashed?"},
		},
		[]ports.ToolSpec{{
			Name:        "backtrace",
			Description: "stack frames of one thread",
			Params: []ports.ToolParamSpec{
				{Name: "thread_id", Type: "integer", Description: "thread to inspect", Required: true},
			},
		}},
	)
	require.NoError(t, err)
	assert.Equal(t, ports.RoleAssistant, reply.Role)
	assert.Equal(t, "the stack points at frame 0", reply.Content)

	assert.Equal(t, DefaultModel, captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, "backtrace", captured.Tools[0].Function.Name)
	assert.Equal(t, "object", captured.Tools[0].Function.Parameters.Type)
	assert.Equal(t, []string{"thread_id"}, captured.Tools[0].Function.Parameters.Required)
	assert.Equal(t, "integer", captured.Tools[0].Function.Parameters.Properties["thread_id"].Type)
}

func TestCompleteDecodesToolCalls(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call-7","type":"function","function":{"name":"backtrace","arguments":"{\"thread_id\":2}"}}]}}]}`))
	}))
	t.Cleanup(server.Close)

	client := &Client{BaseURL: server.URL, APIKey: "sk-test", HTTPClient: server.Client()}

	reply, err := client.Complete(context.Background(), []ports.ChatMessage{{Role: ports.RoleUser, Content: "go"}}, nil)
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call-7", reply.ToolCalls[0].ID)
	assert.Equal(t, "backtrace", reply.ToolCalls[0].Name)
	assert.JSONEq(t, `{"thread_id":2}`, reply.ToolCalls[0].Arguments)
}

func TestCompleteEncodesToolReplies(t *testing.T) {
	t.Parallel()

	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	t.Cleanup(server.Close)

	client := &Client{BaseURL: server.URL, APIKey: "sk-test", HTTPClient: server.Client()}

	_, err := client.Complete(context.Background(), []ports.ChatMessage{
		{Role: ports.RoleAssistant, ToolCalls: []ports.ToolCall{{ID: "call-7", Name: "backtrace", Arguments: "{}"}}},
		{Role: ports.RoleTool, ToolCallID: "call-7", Content: "#0 main () at main.c:4"},
	}, nil)
	require.NoError(t, err)

	require.Len(t, captured.Messages, 2)
	require.Len(t, captured.Messages[0].ToolCalls, 1)
	assert.Equal(t, "call-7", captured.Messages[0].ToolCalls[0].ID)
	assert.Equal(t, "call-7", captured.Messages[1].ToolCallID)
	assert.Equal(t, "tool", captured.Messages[1].Role)
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"authentication_error"}}`))
	}))
	t.Cleanup(server.Close)

	client := &Client{BaseURL: server.URL, APIKey: "sk-bad", HTTPClient: server.Client()}

	_, err := client.Complete(context.Background(), []ports.ChatMessage{{Role: ports.RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestCompleteSurfacesBareStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client := &Client{BaseURL: server.URL, APIKey: "sk-test", HTTPClient: server.Client()}

	_, err := client.Complete(context.Background(), []ports.ChatMessage{{Role: ports.RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	t.Parallel()

	client := &Client{}
	_, err := client.Complete(context.Background(), nil, nil)
	assert.True(t, errors.Is(err, ErrNoAPIKey))
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	t.Cleanup(server.Close)

	client := &Client{BaseURL: server.URL, APIKey: "sk-test", HTTPClient: server.Client()}

	_, err := client.Complete(context.Background(), []ports.ChatMessage{{Role: ports.RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestCompleteRejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	client := &Client{BaseURL: "ftp://example.com", APIKey: "sk-test"}
	_, err := client.Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http or https")
}
