package ports

import (
	"context"

	"github.com/sprookie/aigdb/internal/domain"
)

// Debugger is the session surface the diagnostic layers drive. The
// gdb controller is the production implementation; tests substitute
// scripted fakes.
type Debugger interface {
	Load(ctx context.Context, exePath, corePath string) error
	Run(ctx context.Context, text string) (domain.Result, error)
	RunConsole(ctx context.Context, cliCmd string) (domain.Result, error)
	ConsoleText(ctx context.Context, cliCmd string) (string, error)
	State() domain.SessionState
	Target() domain.Target
	VerifyLoaded(ctx context.Context) bool
	ReapplyTarget(ctx context.Context) error

	Threads(ctx context.Context) (domain.ThreadList, error)
	SelectThread(ctx context.Context, threadID int) error
	SelectFrame(ctx context.Context, level int) error
	BacktraceOf(ctx context.Context, threadID int) (domain.Backtrace, error)
	ListLocals(ctx context.Context) ([]domain.Variable, error)
	Registers(ctx context.Context) (domain.RegisterSet, error)
	StopSignal(ctx context.Context) (domain.SignalInfo, error)
	SharedLibraries(ctx context.Context) ([]domain.SharedLibrary, error)
	Disassemble(ctx context.Context, count int) (string, error)
	ReadMemory(ctx context.Context, addr string, count int, format string) (string, error)
	PrintExpr(ctx context.Context, expr string) (string, error)
	InfoFiles(ctx context.Context) (string, error)
	BacktraceFull(ctx context.Context) (string, error)
	InfoArgs(ctx context.Context) (string, error)
	InfoLocals(ctx context.Context) (string, error)
}

// ReportSynthesizer turns collected autopsy facts into narrative prose.
// The returned text is attached to the report unmodified.
type ReportSynthesizer interface {
	Synthesize(ctx context.Context, report domain.AutopsyReport) (string, error)
}
