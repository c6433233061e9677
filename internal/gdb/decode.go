package gdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sprookie/aigdb/internal/domain"
)

// Typed helpers over the raw command surface. All of them require a
// loaded core; raw Run/RunConsole passthrough stays available pre-load.

func (c *Controller) requireLoaded() error {
	switch c.State() {
	case domain.SessionLoaded:
		return nil
	case domain.SessionTerminated:
		return domain.ErrProcessTerminated
	default:
		return domain.ErrSessionNotLoaded
	}
}

func (c *Controller) runDecoded(ctx context.Context, command string) (domain.Result, error) {
	if err := c.requireLoaded(); err != nil {
		return domain.Result{}, err
	}
	res, err := c.Run(ctx, command)
	if err != nil {
		return domain.Result{}, err
	}
	if res.Failed() {
		return domain.Result{}, fmt.Errorf("debugger: %s", res.ErrorMessage())
	}
	return res, nil
}

// Threads enumerates the threads of the loaded core.
func (c *Controller) Threads(ctx context.Context) (domain.ThreadList, error) {
	res, err := c.runDecoded(ctx, "-thread-info")
	if err != nil {
		return domain.ThreadList{}, err
	}
	return decodeThreadList(res.Payload)
}

// SelectThread switches the debugger's thread context.
func (c *Controller) SelectThread(ctx context.Context, threadID int) error {
	_, err := c.runDecoded(ctx, fmt.Sprintf("-thread-select %d", threadID))
	return err
}

// SelectFrame switches the selected stack frame (0 is the innermost).
func (c *Controller) SelectFrame(ctx context.Context, level int) error {
	_, err := c.runDecoded(ctx, fmt.Sprintf("-stack-select-frame %d", level))
	return err
}

// BacktraceOf captures the call stack of one thread, selecting it
// first when threadID is positive.
func (c *Controller) BacktraceOf(ctx context.Context, threadID int) (domain.Backtrace, error) {
	if threadID > 0 {
		if err := c.SelectThread(ctx, threadID); err != nil {
			return domain.Backtrace{}, err
		}
	}
	res, err := c.runDecoded(ctx, "-stack-list-frames")
	if err != nil {
		return domain.Backtrace{}, err
	}
	frames, err := decodeFrames(res.Payload)
	if err != nil {
		return domain.Backtrace{}, err
	}
	return domain.Backtrace{ThreadID: threadID, Frames: frames}, nil
}

// ListLocals lists the variables of the selected frame with values.
func (c *Controller) ListLocals(ctx context.Context) ([]domain.Variable, error) {
	res, err := c.runDecoded(ctx, "-stack-list-variables --all-values")
	if err != nil {
		return nil, err
	}
	return decodeVariables(res.Payload, "variables")
}

// Registers dumps the selected thread's registers.
func (c *Controller) Registers(ctx context.Context) (domain.RegisterSet, error) {
	if err := c.requireLoaded(); err != nil {
		return domain.RegisterSet{}, err
	}
	text, err := c.ConsoleText(ctx, "info registers")
	if err != nil {
		return domain.RegisterSet{}, err
	}
	return decodeRegisters(text), nil
}

// StopSignal reports why the program stopped, from the debugger's
// program status output.
func (c *Controller) StopSignal(ctx context.Context) (domain.SignalInfo, error) {
	if err := c.requireLoaded(); err != nil {
		return domain.SignalInfo{}, err
	}
	text, err := c.ConsoleText(ctx, "info program")
	if err != nil {
		return domain.SignalInfo{}, err
	}
	return decodeSignal(text), nil
}

// SharedLibraries lists the loaded shared objects.
func (c *Controller) SharedLibraries(ctx context.Context) ([]domain.SharedLibrary, error) {
	if err := c.requireLoaded(); err != nil {
		return nil, err
	}
	text, err := c.ConsoleText(ctx, "info sharedlibrary")
	if err != nil {
		return nil, err
	}
	return decodeSharedLibraries(text), nil
}

// Disassemble disassembles count instructions around the program
// counter. Count is clamped to 1..256.
func (c *Controller) Disassemble(ctx context.Context, count int) (string, error) {
	if err := c.requireLoaded(); err != nil {
		return "", err
	}
	count = clamp(count, 1, 256)
	return c.ConsoleText(ctx, fmt.Sprintf("x/%di $pc", count))
}

// ReadMemory reads count units at addr using an x-command format such
// as bx, wx or gx.
func (c *Controller) ReadMemory(ctx context.Context, addr string, count int, format string) (string, error) {
	if err := c.requireLoaded(); err != nil {
		return "", err
	}
	count = clamp(count, 1, 256)
	format = strings.TrimSpace(format)
	if format == "" {
		format = "bx"
	}
	return c.ConsoleText(ctx, fmt.Sprintf("x/%d%s %s", count, format, addr))
}

// PrintExpr evaluates an expression with the CLI print command.
func (c *Controller) PrintExpr(ctx context.Context, expr string) (string, error) {
	if err := c.requireLoaded(); err != nil {
		return "", err
	}
	return c.ConsoleText(ctx, "print "+expr)
}

// InfoFiles reports the mapped executable/symbol files.
func (c *Controller) InfoFiles(ctx context.Context) (string, error) {
	return c.ConsoleText(ctx, "info files")
}

// BacktraceFull captures the full backtrace with locals per frame.
func (c *Controller) BacktraceFull(ctx context.Context) (string, error) {
	if err := c.requireLoaded(); err != nil {
		return "", err
	}
	return c.ConsoleText(ctx, "bt full")
}

// InfoArgs lists the selected frame's arguments.
func (c *Controller) InfoArgs(ctx context.Context) (string, error) {
	if err := c.requireLoaded(); err != nil {
		return "", err
	}
	return c.ConsoleText(ctx, "info args")
}

// InfoLocals lists the selected frame's locals.
func (c *Controller) InfoLocals(ctx context.Context) (string, error) {
	if err := c.requireLoaded(); err != nil {
		return "", err
	}
	return c.ConsoleText(ctx, "info locals")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func decodeThreadList(payload domain.Fields) (domain.ThreadList, error) {
	threads, ok := payload.List("threads")
	if !ok {
		return domain.ThreadList{}, fmt.Errorf("thread-info result missing threads list")
	}

	var out domain.ThreadList
	for _, tuple := range threads.Tuples() {
		thread := domain.ThreadInfo{
			ID:       atoi(tuple.Str("id")),
			TargetID: tuple.Str("target-id"),
			Name:     tuple.Str("name"),
			State:    tuple.Str("state"),
		}
		if frameFields, ok := tuple.Fields("frame"); ok {
			frame := decodeFrame(frameFields)
			thread.Frame = &frame
		}
		out.Threads = append(out.Threads, thread)
	}
	out.CurrentID = atoi(payload.Str("current-thread-id"))
	return out, nil
}

func decodeFrames(payload domain.Fields) ([]domain.FrameInfo, error) {
	stack, ok := payload.List("stack")
	if !ok {
		return nil, fmt.Errorf("stack-list-frames result missing stack list")
	}
	var frames []domain.FrameInfo
	for _, tuple := range stack.Tuples() {
		frames = append(frames, decodeFrame(tuple))
	}
	return frames, nil
}

func decodeFrame(fields domain.Fields) domain.FrameInfo {
	return domain.FrameInfo{
		Level:    atoi(fields.Str("level")),
		Address:  fields.Str("addr"),
		Function: fields.Str("func"),
		File:     fields.Str("file"),
		FullName: fields.Str("fullname"),
		Line:     atoi(fields.Str("line")),
		From:     fields.Str("from"),
	}
}

func decodeVariables(payload domain.Fields, key string) ([]domain.Variable, error) {
	list, ok := payload.List(key)
	if !ok {
		return nil, fmt.Errorf("result missing %s list", key)
	}
	var vars []domain.Variable
	for _, tuple := range list.Tuples() {
		vars = append(vars, domain.Variable{
			Name:  tuple.Str("name"),
			Value: tuple.Str("value"),
		})
	}
	return vars, nil
}

// decodeRegisters keeps the raw dump and additionally indexes
// name -> hex value from the two-column CLI layout.
func decodeRegisters(text string) domain.RegisterSet {
	set := domain.RegisterSet{Registers: map[string]string{}, Raw: text}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 || !strings.HasPrefix(parts[1], "0x") {
			continue
		}
		set.Registers[parts[0]] = parts[1]
	}
	return set
}

// decodeSignal extracts the stop signal from `info program` output,
// e.g. "It stopped with signal SIGSEGV, Segmentation fault."
func decodeSignal(text string) domain.SignalInfo {
	info := domain.SignalInfo{Description: strings.TrimSpace(text)}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, "signal ")
		if idx < 0 {
			continue
		}
		rest := line[idx+len("signal "):]
		name, meaning, found := strings.Cut(rest, ",")
		info.Name = strings.TrimSuffix(strings.TrimSpace(name), ".")
		if found {
			info.Meaning = strings.TrimSuffix(strings.TrimSpace(meaning), ".")
		}
		switch {
		case strings.Contains(line, "terminated"):
			info.StopReason = "terminated"
		case strings.Contains(line, "stopped"):
			info.StopReason = "stopped"
		}
		break
	}
	return info
}

// decodeSharedLibraries parses the CLI table: From / To / Syms Read /
// Shared Object Library.
func decodeSharedLibraries(text string) []domain.SharedLibrary {
	var libs []domain.SharedLibrary
	for _, line := range strings.Split(text, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 4 || !strings.HasPrefix(parts[0], "0x") {
			continue
		}
		libs = append(libs, domain.SharedLibrary{
			From:     parts[0],
			To:       parts[1],
			SymsRead: strings.EqualFold(parts[2], "Yes"),
			Path:     parts[len(parts)-1],
		})
	}
	return libs
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
