package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sprookie/aigdb/internal/domain"
	"github.com/sprookie/aigdb/internal/ports"
)

const defaultAnalyzeBudget = 2 * time.Minute

var errBudgetExceeded = errors.New("analysis budget exceeded")

// AutopsyEngine runs a fixed script of diagnostic steps against a
// loaded core and aggregates the facts into a report. A single failing
// step never aborts the rest of the script.
type AutopsyEngine struct {
	dbg    ports.Debugger
	synth  ports.ReportSynthesizer
	clock  ports.Clock
	budget time.Duration
	logf   func(tag, text string)
}

func NewAutopsyEngine(dbg ports.Debugger, synth ports.ReportSynthesizer, clock ports.Clock, opts ...AutopsyOption) *AutopsyEngine {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	e := &AutopsyEngine{
		dbg:    dbg,
		synth:  synth,
		clock:  clock,
		budget: defaultAnalyzeBudget,
		logf:   func(string, string) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type AutopsyOption func(*AutopsyEngine)

// WithBudget bounds the wall-clock time of one Analyze run.
func WithBudget(budget time.Duration) AutopsyOption {
	return func(e *AutopsyEngine) {
		if budget > 0 {
			e.budget = budget
		}
	}
}

// WithStepLog mirrors each step's findings, e.g. into the log pane.
func WithStepLog(logf func(tag, text string)) AutopsyOption {
	return func(e *AutopsyEngine) {
		if logf != nil {
			e.logf = logf
		}
	}
}

// scriptState carries facts forward between steps: later steps reuse
// the thread list when it was collected successfully.
type scriptState struct {
	threads    domain.ThreadList
	hasThreads bool
}

type scriptStep struct {
	name string
	run  func(ctx context.Context, state *scriptState) (any, error)
}

func (e *AutopsyEngine) script() []scriptStep {
	return []scriptStep{
		{name: "thread_info", run: func(ctx context.Context, state *scriptState) (any, error) {
			threads, err := e.dbg.Threads(ctx)
			if err != nil {
				return nil, err
			}
			state.threads = threads
			state.hasThreads = true
			return threads, nil
		}},
		{name: "stop_signal", run: func(ctx context.Context, _ *scriptState) (any, error) {
			return e.dbg.StopSignal(ctx)
		}},
		{name: "backtraces", run: func(ctx context.Context, state *scriptState) (any, error) {
			if !state.hasThreads || len(state.threads.Threads) == 0 {
				// No thread list; still capture the current thread's
				// stack rather than giving up.
				bt, err := e.dbg.BacktraceOf(ctx, 0)
				if err != nil {
					return nil, err
				}
				return []domain.Backtrace{bt}, nil
			}
			var stacks []domain.Backtrace
			var failures []error
			for _, thread := range state.threads.Threads {
				bt, err := e.dbg.BacktraceOf(ctx, thread.ID)
				if err != nil {
					failures = append(failures, fmt.Errorf("thread %d: %w", thread.ID, err))
					continue
				}
				stacks = append(stacks, bt)
			}
			if len(stacks) == 0 && len(failures) > 0 {
				return nil, errors.Join(failures...)
			}
			return stacks, nil
		}},
		{name: "faulting_registers", run: func(ctx context.Context, state *scriptState) (any, error) {
			if state.hasThreads && state.threads.CurrentID > 0 {
				if err := e.dbg.SelectThread(ctx, state.threads.CurrentID); err != nil {
					return nil, err
				}
			}
			return e.dbg.Registers(ctx)
		}},
		{name: "shared_libraries", run: func(ctx context.Context, _ *scriptState) (any, error) {
			return e.dbg.SharedLibraries(ctx)
		}},
		{name: "faulting_locals", run: func(ctx context.Context, _ *scriptState) (any, error) {
			return e.dbg.ListLocals(ctx)
		}},
	}
}

// Analyze executes the diagnostic script and, when a synthesizer is
// wired, attaches its narrative. The report is complete when returned:
// callers never observe a half-built one.
func (e *AutopsyEngine) Analyze(ctx context.Context) (domain.AutopsyReport, error) {
	if e.dbg.State() != domain.SessionLoaded {
		return domain.AutopsyReport{}, domain.ErrSessionNotLoaded
	}

	started := e.clock.Now()
	report := domain.AutopsyReport{
		Target:    e.dbg.Target(),
		StartedAt: started,
	}

	ctx, cancel := context.WithTimeout(ctx, e.budget)
	defer cancel()

	state := &scriptState{}
	for _, step := range e.script() {
		stepStart := e.clock.Now()
		result := domain.StepResult{Name: step.name}

		if ctx.Err() != nil {
			// Budget exhausted: remaining steps are recorded as
			// failed-by-timedout instead of hanging the caller.
			result.Err = errBudgetExceeded.Error()
			report.Steps = append(report.Steps, result)
			continue
		}

		fact, err := step.run(ctx, state)
		result.Elapsed = e.clock.Now().Sub(stepStart)
		if err != nil {
			if ctx.Err() != nil {
				result.Err = errBudgetExceeded.Error()
			} else {
				result.Err = err.Error()
			}
			e.logf(step.name, "step failed: "+result.Err)
		} else {
			result.Fact = fact
			e.logf(step.name, "collected")
		}
		report.Steps = append(report.Steps, result)
	}

	report.Duration = e.clock.Now().Sub(started)

	if e.synth != nil && ctx.Err() == nil {
		narrative, err := e.synth.Synthesize(ctx, report)
		if err != nil {
			// The facts stand on their own; a failed synthesis is
			// reported but does not void the run.
			e.logf("narrative", "synthesis failed: "+err.Error())
		} else {
			report.Narrative = narrative
		}
	}

	return report, nil
}
