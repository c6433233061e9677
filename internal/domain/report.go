package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// StepResult is the outcome of one autopsy step: either a typed fact or
// a failure message. Failures never abort the remaining script.
type StepResult struct {
	Name    string        `json:"name"`
	Fact    any           `json:"fact,omitempty"`
	Err     string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsedNs"`
}

// Failed reports whether the step produced no fact.
func (s StepResult) Failed() bool {
	return s.Err != ""
}

// AutopsyReport aggregates the facts collected by one analysis run.
// Steps keep script order. Narrative is filled by the external report
// synthesizer and attached unmodified.
type AutopsyReport struct {
	Target    Target        `json:"target"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"durationNs"`
	Steps     []StepResult  `json:"steps"`
	Narrative string        `json:"narrative,omitempty"`
}

// FailedSteps returns the names of every failed step.
func (r AutopsyReport) FailedSteps() []string {
	var names []string
	for _, s := range r.Steps {
		if s.Failed() {
			names = append(names, s.Name)
		}
	}
	return names
}

// Evidence renders the collected facts as plain text for the report
// synthesizer and the log pane. Failed steps are listed with their
// errors so the synthesizer can reason about missing evidence.
func (r AutopsyReport) Evidence() string {
	var b strings.Builder
	fmt.Fprintf(&b, "target: exe=%s core=%s\n", r.Target.ExecutablePath, r.Target.CorePath)
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "\n[%s]\n", s.Name)
		if s.Failed() {
			fmt.Fprintf(&b, "(step failed: %s)\n", s.Err)
			continue
		}
		writeFact(&b, s.Fact)
	}
	return b.String()
}

func writeFact(b *strings.Builder, fact any) {
	switch f := fact.(type) {
	case ThreadList:
		for _, t := range f.Threads {
			marker := " "
			if t.ID == f.CurrentID {
				marker = "*"
			}
			fmt.Fprintf(b, "%s thread %d (%s) %s", marker, t.ID, t.State, t.TargetID)
			if t.Frame != nil {
				fmt.Fprintf(b, " at %s", t.Frame.Function)
			}
			b.WriteString("\n")
		}
	case Backtrace:
		fmt.Fprintf(b, "thread %d:\n", f.ThreadID)
		for _, fr := range f.Frames {
			writeFrame(b, fr)
		}
	case []Backtrace:
		for _, bt := range f {
			fmt.Fprintf(b, "thread %d:\n", bt.ThreadID)
			for _, fr := range bt.Frames {
				writeFrame(b, fr)
			}
		}
	case SignalInfo:
		fmt.Fprintf(b, "signal=%s meaning=%s reason=%s\n", f.Name, f.Meaning, f.StopReason)
		if f.Description != "" {
			b.WriteString(f.Description)
			if !strings.HasSuffix(f.Description, "\n") {
				b.WriteString("\n")
			}
		}
	case RegisterSet:
		if f.Raw != "" {
			b.WriteString(f.Raw)
			if !strings.HasSuffix(f.Raw, "\n") {
				b.WriteString("\n")
			}
			return
		}
		names := make([]string, 0, len(f.Registers))
		for name := range f.Registers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(b, "%s=%s\n", name, f.Registers[name])
		}
	case []SharedLibrary:
		for _, lib := range f {
			fmt.Fprintf(b, "%s (%s-%s, syms=%v)\n", lib.Path, lib.From, lib.To, lib.SymsRead)
		}
	case []Variable:
		for _, v := range f {
			fmt.Fprintf(b, "%s = %s\n", v.Name, v.Value)
		}
	case string:
		b.WriteString(f)
		if f != "" && !strings.HasSuffix(f, "\n") {
			b.WriteString("\n")
		}
	default:
		fmt.Fprintf(b, "%v\n", fact)
	}
}

func writeFrame(b *strings.Builder, fr FrameInfo) {
	fmt.Fprintf(b, "  #%d %s %s", fr.Level, fr.Address, fr.Function)
	if fr.File != "" {
		fmt.Fprintf(b, " (%s:%d)", fr.File, fr.Line)
	} else if fr.From != "" {
		fmt.Fprintf(b, " from %s", fr.From)
	}
	b.WriteString("\n")
}
