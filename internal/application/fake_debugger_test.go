package application

import (
	"context"

	"github.com/sprookie/aigdb/internal/domain"
	"github.com/sprookie/aigdb/internal/ports"
)

// fakeDebugger satisfies ports.Debugger with canned facts; individual
// operations are overridable per test.
type fakeDebugger struct {
	state    domain.SessionState
	target   domain.Target
	verified bool

	reapplied int
	selected  []int
	consoleIn []string

	loadFn    func(ctx context.Context, exe, core string) error
	threadsFn func(ctx context.Context) (domain.ThreadList, error)
	signalFn  func(ctx context.Context) (domain.SignalInfo, error)
	backtrace func(ctx context.Context, threadID int) (domain.Backtrace, error)
	registers func(ctx context.Context) (domain.RegisterSet, error)
	libsFn    func(ctx context.Context) ([]domain.SharedLibrary, error)
	localsFn  func(ctx context.Context) ([]domain.Variable, error)
	consoleFn func(ctx context.Context, cliCmd string) (string, error)
}

var _ ports.Debugger = (*fakeDebugger)(nil)

func newFakeDebugger() *fakeDebugger {
	return &fakeDebugger{
		state:    domain.SessionLoaded,
		target:   domain.Target{ExecutablePath: "/bin/crashy", CorePath: "/tmp/core.1"},
		verified: true,
	}
}

func (f *fakeDebugger) Load(ctx context.Context, exe, core string) error {
	if f.loadFn != nil {
		return f.loadFn(ctx, exe, core)
	}
	f.state = domain.SessionLoaded
	f.target = domain.Target{ExecutablePath: exe, CorePath: core}
	return nil
}

func (f *fakeDebugger) Run(context.Context, string) (domain.Result, error) {
	return domain.Result{Class: "done"}, nil
}

func (f *fakeDebugger) RunConsole(context.Context, string) (domain.Result, error) {
	return domain.Result{Class: "done"}, nil
}

func (f *fakeDebugger) ConsoleText(ctx context.Context, cliCmd string) (string, error) {
	f.consoleIn = append(f.consoleIn, cliCmd)
	if f.consoleFn != nil {
		return f.consoleFn(ctx, cliCmd)
	}
	return "ok\n", nil
}

func (f *fakeDebugger) State() domain.SessionState { return f.state }
func (f *fakeDebugger) Target() domain.Target      { return f.target }

func (f *fakeDebugger) VerifyLoaded(context.Context) bool { return f.verified }

func (f *fakeDebugger) ReapplyTarget(context.Context) error {
	f.reapplied++
	f.verified = true
	return nil
}

func (f *fakeDebugger) Threads(ctx context.Context) (domain.ThreadList, error) {
	if f.threadsFn != nil {
		return f.threadsFn(ctx)
	}
	return domain.ThreadList{
		Threads: []domain.ThreadInfo{
			{ID: 1, State: "stopped", TargetID: "LWP 40"},
			{ID: 2, State: "stopped", TargetID: "LWP 41"},
		},
		CurrentID: 2,
	}, nil
}

func (f *fakeDebugger) SelectThread(_ context.Context, threadID int) error {
	f.selected = append(f.selected, threadID)
	return nil
}

func (f *fakeDebugger) SelectFrame(context.Context, int) error { return nil }

func (f *fakeDebugger) BacktraceOf(ctx context.Context, threadID int) (domain.Backtrace, error) {
	if f.backtrace != nil {
		return f.backtrace(ctx, threadID)
	}
	return domain.Backtrace{
		ThreadID: threadID,
		Frames: []domain.FrameInfo{
			{Level: 0, Address: "0x401132", Function: "crash", File: "crash.c", Line: 7},
		},
	}, nil
}

func (f *fakeDebugger) ListLocals(ctx context.Context) ([]domain.Variable, error) {
	if f.localsFn != nil {
		return f.localsFn(ctx)
	}
	return []domain.Variable{{Name: "p", Value: "0x0"}}, nil
}

func (f *fakeDebugger) Registers(ctx context.Context) (domain.RegisterSet, error) {
	if f.registers != nil {
		return f.registers(ctx)
	}
	return domain.RegisterSet{Registers: map[string]string{"rip": "0x401132"}, Raw: "rip 0x401132\n"}, nil
}

func (f *fakeDebugger) StopSignal(ctx context.Context) (domain.SignalInfo, error) {
	if f.signalFn != nil {
		return f.signalFn(ctx)
	}
	return domain.SignalInfo{Name: "SIGSEGV", Meaning: "Segmentation fault", StopReason: "stopped"}, nil
}

func (f *fakeDebugger) SharedLibraries(ctx context.Context) ([]domain.SharedLibrary, error) {
	if f.libsFn != nil {
		return f.libsFn(ctx)
	}
	return []domain.SharedLibrary{{Path: "/lib/libc.so.6", SymsRead: true}}, nil
}

func (f *fakeDebugger) Disassemble(context.Context, int) (string, error) {
	return "0x401132 <crash+12>: mov (%rax),%edi\n", nil
}

func (f *fakeDebugger) ReadMemory(context.Context, string, int, string) (string, error) {
	return "0x7fff0000: 0x00 0x00\n", nil
}

func (f *fakeDebugger) PrintExpr(context.Context, string) (string, error) { return "$1 = 0x0\n", nil }
func (f *fakeDebugger) InfoFiles(context.Context) (string, error) {
	return "Symbols from crashy.\n", nil
}
func (f *fakeDebugger) BacktraceFull(context.Context) (string, error) { return "#0 crash ()\n", nil }
func (f *fakeDebugger) InfoArgs(context.Context) (string, error)      { return "argc = 1\n", nil }
func (f *fakeDebugger) InfoLocals(context.Context) (string, error)    { return "p = 0x0\n", nil }
