package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sprookie/aigdb/internal/domain"
	"github.com/sprookie/aigdb/internal/ports"
)

const defaultMaxIterations = 12

const agentSystemPrompt = `You are a senior Linux crash-analysis assistant driving GDB through tools.
Workflow:
1) If no core is loaded, call load_core first.
2) Collect thread_info, backtrace/bt_full and the stop signal before anything else.
3) When needed, select_thread/select_frame, then inspect registers, disassemble or memory_read.
4) Conclude with the causal chain, the supporting evidence and concrete fix suggestions.
Rules: call the single most necessary tool per step, read its output before deciding the next one, and finish with a clear conclusion.`

// Agent drives the chat model's tool-calling loop over the explicit
// tool registry. Iterations are bounded so a confused model cannot
// spin the debugger forever.
type Agent struct {
	model         ports.ChatModel
	tools         *ToolRegistry
	maxIterations int
}

func NewAgent(model ports.ChatModel, tools *ToolRegistry) *Agent {
	return &Agent{
		model:         model,
		tools:         tools,
		maxIterations: defaultMaxIterations,
	}
}

// Ask runs one user request to completion: the model may call
// registered tools any number of times (bounded) before its final
// answer.
func (a *Agent) Ask(ctx context.Context, input string) (string, error) {
	messages := []ports.ChatMessage{
		{Role: ports.RoleSystem, Content: agentSystemPrompt},
		{Role: ports.RoleUser, Content: input},
	}

	for i := 0; i < a.maxIterations; i++ {
		reply, err := a.model.Complete(ctx, messages, a.tools.Specs())
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		messages = append(messages, reply)

		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		for _, call := range reply.ToolCalls {
			messages = append(messages, ports.ChatMessage{
				Role:       ports.RoleTool,
				ToolCallID: call.ID,
				Content:    a.runTool(ctx, call),
			})
		}
	}

	return "", fmt.Errorf("no final answer after %d tool iterations", a.maxIterations)
}

// runTool executes one requested call, turning failures into text the
// model can react to. Session-fatal errors still surface as text here;
// the model is told the session is dead and stops on its own.
func (a *Agent) runTool(ctx context.Context, call ports.ToolCall) string {
	out, err := a.tools.Call(ctx, call.Name, call.Arguments)
	switch {
	case errors.Is(err, domain.ErrToolNotFound):
		return fmt.Sprintf("unknown tool %q; available: %s", call.Name, strings.Join(a.toolNames(), ", "))
	case errors.Is(err, domain.ErrSessionNotLoaded):
		return "no core is loaded; call load_core with exe_path and core_path first"
	case errors.Is(err, domain.ErrProcessTerminated):
		return "the debugger session died; it must be reloaded before further inspection"
	case err != nil:
		return "tool failed: " + err.Error()
	}
	if strings.TrimSpace(out) == "" {
		return "(no output)"
	}
	return out
}

func (a *Agent) toolNames() []string {
	specs := a.tools.Specs()
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
	}
	return names
}

// NarrativeSynthesizer implements the report synthesizer boundary with
// a single completion over the collected evidence.
type NarrativeSynthesizer struct {
	model ports.ChatModel
}

func NewNarrativeSynthesizer(model ports.ChatModel) *NarrativeSynthesizer {
	return &NarrativeSynthesizer{model: model}
}

var _ ports.ReportSynthesizer = (*NarrativeSynthesizer)(nil)

func (s *NarrativeSynthesizer) Synthesize(ctx context.Context, report domain.AutopsyReport) (string, error) {
	messages := []ports.ChatMessage{
		{Role: ports.RoleSystem, Content: agentSystemPrompt},
		{Role: ports.RoleUser, Content: "Here is the evidence collected from the crash dump. Summarize the likely cause and give fix suggestions, citing the evidence:\n\n" + report.Evidence()},
	}
	reply, err := s.model.Complete(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("synthesize narrative: %w", err)
	}
	return reply.Content, nil
}
