package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sprookie/aigdb/internal/domain"
	"github.com/sprookie/aigdb/internal/ports"
)

// Args carries decoded tool-call arguments.
type Args map[string]any

func (a Args) Str(key string) string {
	v, ok := a[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (a Args) Int(key string, fallback int) int {
	v, ok := a[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		var parsed int
		if _, err := fmt.Sscanf(n, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

// Tool pairs a declared spec with its implementation. The registry is
// explicit: every entry is constructed by hand, no reflection.
type Tool struct {
	Spec ports.ToolSpec
	Call func(ctx context.Context, args Args) (string, error)
}

// ToolRegistry is the only surface through which the model layer may
// affect the debugger session.
type ToolRegistry struct {
	order []string
	tools map[string]Tool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: map[string]Tool{}}
}

func (r *ToolRegistry) Register(tool Tool) {
	if _, exists := r.tools[tool.Spec.Name]; !exists {
		r.order = append(r.order, tool.Spec.Name)
	}
	r.tools[tool.Spec.Name] = tool
}

// Specs lists the declared tool surfaces in registration order.
func (r *ToolRegistry) Specs() []ports.ToolSpec {
	specs := make([]ports.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec)
	}
	return specs
}

// Call decodes rawArgs as JSON and invokes the named tool.
func (r *ToolRegistry) Call(ctx context.Context, name, rawArgs string) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}
	args := Args{}
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return "", fmt.Errorf("decode arguments for %s: %w", name, err)
		}
	}
	return tool.Call(ctx, args)
}

// Commands that would clear or replace the loaded executable/core
// context; the model gets read-only access to the dump.
var destructivePrefixes = []string{
	"file", "core-file", "symbol-file", "exec-file",
	"target", "attach", "run", "quit",
}

func isDestructive(cliCmd string) bool {
	normalized := strings.ToLower(strings.TrimSpace(cliCmd))
	for _, prefix := range destructivePrefixes {
		if normalized == prefix || strings.HasPrefix(normalized, prefix+" ") {
			return true
		}
	}
	return false
}

// NewDebuggerTools builds the registry the agent drives: every
// controller operation the original assistant had, wrapped with
// context recovery and the destructive-command gate. logf mirrors tool
// traffic into the debugger log pane.
func NewDebuggerTools(dbg ports.Debugger, logf func(tag, text string)) *ToolRegistry {
	if logf == nil {
		logf = func(string, string) {}
	}
	r := NewToolRegistry()

	logged := func(tag string, out string, err error) (string, error) {
		if err != nil {
			logf(tag, "error: "+err.Error())
			return "", err
		}
		logf(tag, out)
		return out, nil
	}

	// ensureLoaded re-applies the recorded target when the session
	// lost its context, so one stray command does not strand the whole
	// analysis.
	ensureLoaded := func(ctx context.Context) error {
		if dbg.VerifyLoaded(ctx) {
			return nil
		}
		target := dbg.Target()
		if target.ExecutablePath == "" || target.CorePath == "" {
			return domain.ErrSessionNotLoaded
		}
		if err := dbg.ReapplyTarget(ctx); err != nil {
			return fmt.Errorf("recover debugger context: %w", err)
		}
		logf("restore", fmt.Sprintf("reapplied exe=%s core=%s", target.ExecutablePath, target.CorePath))
		return nil
	}

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "load_core",
			Description: "Load an executable and its core dump into the debugger.",
			Params: []ports.ToolParamSpec{
				{Name: "exe_path", Type: "string", Description: "path to the executable", Required: true},
				{Name: "core_path", Type: "string", Description: "path to the core dump", Required: true},
			},
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			err := dbg.Load(ctx, args.Str("exe_path"), args.Str("core_path"))
			if err != nil {
				return logged("load_core", "", err)
			}
			return logged("load_core", "loaded", nil)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "run_gdb",
			Description: "Run a native GDB command. Commands that would replace or drop the loaded target are blocked.",
			Params: []ports.ToolParamSpec{
				{Name: "command", Type: "string", Description: "native GDB command, e.g. bt or info threads", Required: true},
			},
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			command := args.Str("command")
			if isDestructive(command) {
				logf("blocked", command)
				return "command blocked: it would clear or change the loaded executable/core context; use inspection commands (info/print/bt/x) instead", nil
			}
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			out, err := dbg.ConsoleText(ctx, command)
			return logged("gdb", out, err)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "thread_info",
			Description: "List the threads of the crashed process.",
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			threads, err := dbg.Threads(ctx)
			if err != nil {
				return logged("thread_info", "", err)
			}
			return logged("thread_info", formatThreads(threads), nil)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "backtrace",
			Description: "Capture the call stack of one thread.",
			Params: []ports.ToolParamSpec{
				{Name: "thread_id", Type: "integer", Description: "thread to inspect", Required: true},
			},
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			bt, err := dbg.BacktraceOf(ctx, args.Int("thread_id", 0))
			if err != nil {
				return logged("backtrace", "", err)
			}
			return logged("backtrace", formatBacktrace(bt), nil)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "bt_full",
			Description: "Full backtrace with arguments and locals per frame.",
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			out, err := dbg.BacktraceFull(ctx)
			return logged("bt_full", out, err)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "list_locals",
			Description: "List local variables of the selected frame with values.",
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			locals, err := dbg.ListLocals(ctx)
			if err != nil {
				return logged("locals", "", err)
			}
			return logged("locals", formatVariables(locals), nil)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "select_thread",
			Description: "Switch the debugger's thread context.",
			Params: []ports.ToolParamSpec{
				{Name: "thread_id", Type: "integer", Description: "thread to select", Required: true},
			},
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			if err := dbg.SelectThread(ctx, args.Int("thread_id", 0)); err != nil {
				return logged("select_thread", "", err)
			}
			return logged("select_thread", "ok", nil)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "select_frame",
			Description: "Select a stack frame level; 0 is the innermost frame.",
			Params: []ports.ToolParamSpec{
				{Name: "level", Type: "integer", Description: "frame level", Required: true},
			},
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			if err := dbg.SelectFrame(ctx, args.Int("level", 0)); err != nil {
				return logged("select_frame", "", err)
			}
			return logged("select_frame", "ok", nil)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "registers",
			Description: "Dump the registers of the selected thread.",
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			regs, err := dbg.Registers(ctx)
			if err != nil {
				return logged("registers", "", err)
			}
			return logged("registers", regs.Raw, nil)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "disassemble",
			Description: "Disassemble instructions around the program counter.",
			Params: []ports.ToolParamSpec{
				{Name: "count", Type: "integer", Description: "instruction count, 1-256"},
			},
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			out, err := dbg.Disassemble(ctx, args.Int("count", 32))
			return logged("disassemble", out, err)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "memory_read",
			Description: "Read a block of memory at an address expression.",
			Params: []ports.ToolParamSpec{
				{Name: "addr", Type: "string", Description: "address expression, e.g. 0x7fff... or $sp", Required: true},
				{Name: "count", Type: "integer", Description: "unit count, 1-256"},
				{Name: "fmt", Type: "string", Description: "x-command format: bx, wx or gx"},
			},
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			out, err := dbg.ReadMemory(ctx, args.Str("addr"), args.Int("count", 16), args.Str("fmt"))
			return logged("memory", out, err)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "info_files",
			Description: "Show the mapped executable and symbol files.",
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			out, err := dbg.InfoFiles(ctx)
			return logged("info_files", out, err)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "sharedlibs",
			Description: "List the loaded shared libraries.",
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			libs, err := dbg.SharedLibraries(ctx)
			if err != nil {
				return logged("sharedlibs", "", err)
			}
			return logged("sharedlibs", formatSharedLibraries(libs), nil)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "info_args",
			Description: "Show the selected frame's arguments.",
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			out, err := dbg.InfoArgs(ctx)
			return logged("info_args", out, err)
		},
	})

	r.Register(Tool{
		Spec: ports.ToolSpec{
			Name:        "info_locals",
			Description: "Show the selected frame's local variables.",
		},
		Call: func(ctx context.Context, args Args) (string, error) {
			if err := ensureLoaded(ctx); err != nil {
				return "", err
			}
			out, err := dbg.InfoLocals(ctx)
			return logged("info_locals", out, err)
		},
	})

	return r
}

func formatThreads(list domain.ThreadList) string {
	var b strings.Builder
	for _, t := range list.Threads {
		marker := " "
		if t.ID == list.CurrentID {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %d %s (%s)", marker, t.ID, t.TargetID, t.State)
		if t.Frame != nil {
			fmt.Fprintf(&b, " in %s", t.Frame.Function)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "(no threads)"
	}
	return b.String()
}

func formatBacktrace(bt domain.Backtrace) string {
	var b strings.Builder
	for _, fr := range bt.Frames {
		fmt.Fprintf(&b, "#%d %s %s", fr.Level, fr.Address, fr.Function)
		if fr.File != "" {
			fmt.Fprintf(&b, " at %s:%d", fr.File, fr.Line)
		} else if fr.From != "" {
			fmt.Fprintf(&b, " from %s", fr.From)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "(no frames)"
	}
	return b.String()
}

func formatVariables(vars []domain.Variable) string {
	if len(vars) == 0 {
		return "(no variables)"
	}
	var b strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&b, "%s = %s\n", v.Name, v.Value)
	}
	return b.String()
}

func formatSharedLibraries(libs []domain.SharedLibrary) string {
	if len(libs) == 0 {
		return "(no shared libraries)"
	}
	var b strings.Builder
	for _, lib := range libs {
		syms := "no syms"
		if lib.SymsRead {
			syms = "syms"
		}
		fmt.Fprintf(&b, "%s %s-%s (%s)\n", lib.Path, lib.From, lib.To, syms)
	}
	return b.String()
}
