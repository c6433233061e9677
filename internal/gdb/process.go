package gdb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/sprookie/aigdb/internal/domain"
	"github.com/sprookie/aigdb/internal/mi"
)

// procHandle abstracts the spawned debugger so tests can drive a
// scripted fake over in-memory pipes.
type procHandle interface {
	Stdin() io.Writer
	Stdout() io.Reader
	Stderr() io.Reader
	Kill() error
	Wait() error
}

// Launcher starts the debugger binary in machine-interface mode.
type Launcher func(gdbPath string) (procHandle, error)

// LaunchGDB is the production launcher: gdb in MI2 mode, quiet, with
// user init files suppressed so output stays machine-parseable.
func LaunchGDB(gdbPath string) (procHandle, error) {
	cmd := exec.Command(gdbPath, "--interpreter=mi2", "--quiet", "-nx")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("open stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProcessLaunch, err)
	}
	return &execHandle{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

type execHandle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

func (h *execHandle) Stdin() io.Writer  { return h.stdin }
func (h *execHandle) Stdout() io.Reader { return h.stdout }
func (h *execHandle) Stderr() io.Reader { return h.stderr }
func (h *execHandle) Kill() error       { return h.cmd.Process.Kill() }
func (h *execHandle) Wait() error       { return h.cmd.Wait() }

// recordSink receives every parsed record plus lifecycle signals, in
// the exact order the process emitted them.
type recordSink interface {
	record(domain.Record)
	promptSeen()
	terminated(err error)
}

// process owns the debugger subprocess: exclusive stdin access and a
// single reader goroutine draining stdout for the session lifetime.
type process struct {
	handle procHandle
	diag   func(string)

	writeMu sync.Mutex
	done    chan struct{}
}

func startProcess(launcher Launcher, gdbPath string, sink recordSink, diag func(string)) (*process, error) {
	handle, err := launcher(gdbPath)
	if err != nil {
		if !errors.Is(err, domain.ErrProcessLaunch) {
			err = fmt.Errorf("%w: %v", domain.ErrProcessLaunch, err)
		}
		return nil, err
	}

	p := &process{
		handle: handle,
		diag:   diag,
		done:   make(chan struct{}),
	}
	go p.drainStderr()
	go p.readLoop(sink)
	return p, nil
}

// WriteLine sends one command line to the debugger. The dispatcher is
// the only caller; no other component may write to stdin.
func (p *process) WriteLine(text string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := io.WriteString(p.handle.Stdin(), text+"\n"); err != nil {
		return err
	}
	return nil
}

// Kill terminates the subprocess; the reader loop observes the exit and
// notifies the sink.
func (p *process) Kill() error {
	return p.handle.Kill()
}

// Done is closed once the reader loop has observed process exit.
func (p *process) Done() <-chan struct{} {
	return p.done
}

func (p *process) readLoop(sink recordSink) {
	defer close(p.done)

	scanner := bufio.NewScanner(p.handle.Stdout())
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if mi.IsPrompt(line) {
			sink.promptSeen()
			continue
		}
		rec, err := mi.Parse(line)
		if err != nil {
			// Malformed line: logged and dropped, session continues.
			p.diag(fmt.Sprintf("dropped unparseable line %q: %v", line, err))
			continue
		}
		sink.record(rec)
	}

	waitErr := p.handle.Wait()
	if scanErr := scanner.Err(); scanErr != nil {
		p.diag(fmt.Sprintf("debugger stdout read failed: %v", scanErr))
	}
	if waitErr != nil {
		sink.terminated(fmt.Errorf("%w: %v", domain.ErrProcessTerminated, waitErr))
		return
	}
	sink.terminated(domain.ErrProcessTerminated)
}

func (p *process) drainStderr() {
	stderr := p.handle.Stderr()
	if stderr == nil {
		return
	}
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			p.diag("gdb stderr: " + line)
		}
	}
}
