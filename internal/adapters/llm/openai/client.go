// Package openai talks to an OpenAI-compatible chat completions
// endpoint. The defaults target DeepSeek, but any provider that speaks
// the same wire format works by overriding the base URL and model.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sprookie/aigdb/internal/ports"
)

const (
	DefaultBaseURL = "https://api.deepseek.com/v1"
	DefaultModel   = "deepseek-chat"

	completionsPath      = "chat/completions"
	maxResponseBytes     = 4 << 20
	defaultClientTimeout = 120 * time.Second
)

var ErrNoAPIKey = errors.New("api key is required")

type Client struct {
	BaseURL        string
	APIKey         string
	Model          string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

func NewClient(apiKey string) *Client {
	return &Client{APIKey: apiKey}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string          `json:"type"`
	Function wireToolDeclare `json:"function"`
}

type wireToolDeclare struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  wireSchema `json:"parameters"`
}

type wireSchema struct {
	Type       string                  `json:"type"`
	Properties map[string]wireProperty `json:"properties"`
	Required   []string                `json:"required,omitempty"`
}

type wireProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) Complete(ctx context.Context, messages []ports.ChatMessage, tools []ports.ToolSpec) (ports.ChatMessage, error) {
	if c.APIKey == "" {
		return ports.ChatMessage{}, ErrNoAPIKey
	}

	endpoint, err := c.completionsURL()
	if err != nil {
		return ports.ChatMessage{}, err
	}

	payload := chatRequest{
		Model:    c.model(),
		Messages: encodeMessages(messages),
		Tools:    encodeTools(tools),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ports.ChatMessage{}, fmt.Errorf("encode chat request: %w", err)
	}

	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.ChatMessage{}, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return ports.ChatMessage{}, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return ports.ChatMessage{}, fmt.Errorf("request chat completion: status %d", resp.StatusCode)
		}
		return ports.ChatMessage{}, fmt.Errorf("decode chat response: %w", err)
	}

	if parsed.Error != nil {
		return ports.ChatMessage{}, fmt.Errorf("request chat completion: %s", parsed.Error.Message)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return ports.ChatMessage{}, fmt.Errorf("request chat completion: status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return ports.ChatMessage{}, errors.New("chat response has no choices")
	}

	return decodeMessage(parsed.Choices[0].Message), nil
}

func encodeMessages(messages []ports.ChatMessage) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		wire := wireMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, wireToolCall{
				ID:   call.ID,
				Type: "function",
				Function: wireFunction{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out = append(out, wire)
	}
	return out
}

func encodeTools(tools []ports.ToolSpec) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, 0, len(tools))
	for _, tool := range tools {
		schema := wireSchema{
			Type:       "object",
			Properties: map[string]wireProperty{},
		}
		for _, param := range tool.Params {
			schema.Properties[param.Name] = wireProperty{
				Type:        param.Type,
				Description: param.Description,
			}
			if param.Required {
				schema.Required = append(schema.Required, param.Name)
			}
		}
		out = append(out, wireTool{
			Type: "function",
			Function: wireToolDeclare{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		})
	}
	return out
}

func decodeMessage(wire wireMessage) ports.ChatMessage {
	msg := ports.ChatMessage{
		Role:    ports.ChatRole(wire.Role),
		Content: wire.Content,
	}
	for _, call := range wire.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ports.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return msg
}

func (c *Client) completionsURL() (string, error) {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("base url host is required")
	}

	return parsed.JoinPath(completionsPath).String(), nil
}

func (c *Client) model() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	return context.WithTimeout(ctx, timeout)
}
