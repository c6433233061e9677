package ports

import "context"

type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleTool      ChatRole = "tool"
)

// ChatMessage is one turn of a model conversation. Assistant turns may
// request tool calls; tool turns answer one call by ID.
type ChatMessage struct {
	Role       ChatRole
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model-requested invocation of a registered tool, with
// raw JSON arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolParamSpec declares one argument of a tool. Type is a JSON schema
// primitive ("string", "integer").
type ToolParamSpec struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ToolSpec is the declared surface of one callable tool: name, what it
// does, and its argument schema. No runtime introspection anywhere.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParamSpec
}

// ChatModel is the boundary to the report-generation collaborator: one
// synchronous completion over a message history, optionally offering
// tools the model may call.
type ChatModel interface {
	Complete(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (ChatMessage, error)
}
