package gdb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sprookie/aigdb/internal/domain"
)

const defaultCommandTimeout = 5 * time.Second

// Controller is the facade over the session process, the command
// dispatcher and the notification router. One controller drives at most
// one debugger session at a time; loading a new target tears the
// previous session down first.
type Controller struct {
	gdbPath    string
	launcher   Launcher
	diag       func(string)
	cmdTimeout time.Duration
	router     *Router

	mu     sync.Mutex
	state  domain.SessionState
	target domain.Target
	proc   *process
	disp   *Dispatcher
	sink   *sessionSink
}

type Option func(*Controller)

// WithGDBPath overrides the debugger binary path (default "gdb").
func WithGDBPath(path string) Option {
	return func(c *Controller) { c.gdbPath = path }
}

// WithLauncher substitutes the process launcher; tests use this to run
// against a scripted fake debugger.
func WithLauncher(launcher Launcher) Option {
	return func(c *Controller) { c.launcher = launcher }
}

// WithDiag installs a diagnostics hook for dropped lines and protocol
// inconsistencies.
func WithDiag(diag func(string)) Option {
	return func(c *Controller) { c.diag = diag }
}

// WithCommandTimeout sets the per-command default timeout.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(c *Controller) { c.cmdTimeout = timeout }
}

func NewController(opts ...Option) *Controller {
	c := &Controller{
		gdbPath:    "gdb",
		launcher:   LaunchGDB,
		diag:       func(string) {},
		cmdTimeout: defaultCommandTimeout,
		router:     NewRouter(),
		state:      domain.SessionUnloaded,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sessionSink wires one session's record flow: results to the
// dispatcher, everything else to the router, with stream records also
// captured as in-flight command output. Runs on the reader goroutine,
// so async records are always published before the command completion
// they precede.
type sessionSink struct {
	controller *Controller
	disp       *Dispatcher
	router     *Router
}

func (s *sessionSink) record(rec domain.Record) {
	if rec.Kind == domain.KindResult {
		s.disp.deliver(rec)
		return
	}
	if rec.Kind.IsStream() {
		s.disp.captureOutput(rec)
	}
	s.router.Publish(rec)
}

func (s *sessionSink) promptSeen() {
	s.disp.promptSeen()
}

func (s *sessionSink) terminated(err error) {
	s.disp.fail(err)
	s.controller.sessionTerminated(s)
}

func (c *Controller) sessionTerminated(s *sessionSink) {
	c.mu.Lock()
	current := c.sink == s
	if current {
		c.state = domain.SessionTerminated
		c.proc = nil
		c.disp = nil
		c.sink = nil
	}
	c.mu.Unlock()

	if current {
		c.router.CloseAll()
	}
}

// Subscribe registers a consumer of asynchronous records. The stream is
// closed on session teardown.
func (c *Controller) Subscribe(filter RecordFilter, buffer int) *Subscription {
	return c.router.Subscribe(filter, buffer)
}

// State returns the session lifecycle state.
func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Target returns the currently recorded executable/core pair.
func (c *Controller) Target() domain.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Load tears down any existing session, spawns a fresh debugger and
// points it at the executable/core pair. On rejection the process stays
// up but the session is left Unloaded.
func (c *Controller) Load(ctx context.Context, exePath, corePath string) error {
	if _, err := os.Stat(exePath); err != nil {
		return fmt.Errorf("%w: executable %s: %v", domain.ErrLoadFailed, exePath, err)
	}
	if _, err := os.Stat(corePath); err != nil {
		return fmt.Errorf("%w: core %s: %v", domain.ErrLoadFailed, corePath, err)
	}

	c.mu.Lock()
	c.teardownLocked()
	disp, err := c.spawnLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = domain.SessionLoading
	c.target = domain.Target{ExecutablePath: exePath, CorePath: corePath, LastLoadedAt: time.Now()}
	c.mu.Unlock()

	if err := c.applyTarget(ctx, disp, exePath, corePath); err != nil {
		c.mu.Lock()
		if c.disp == disp {
			c.state = domain.SessionUnloaded
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.disp == disp {
		c.state = domain.SessionLoaded
	}
	c.mu.Unlock()
	return nil
}

func (c *Controller) applyTarget(ctx context.Context, disp *Dispatcher, exePath, corePath string) error {
	for _, command := range []string{
		"-file-exec-and-symbols " + exePath,
		"-target-select core " + corePath,
	} {
		res, err := disp.Submit(ctx, command, c.cmdTimeout)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrLoadFailed, command, err)
		}
		if res.Failed() {
			return fmt.Errorf("%w: %s: %s", domain.ErrLoadFailed, command, res.ErrorMessage())
		}
	}
	return nil
}

// Run submits a raw MI command. Allowed before any target is loaded,
// matching native debugger behavior for passthrough commands.
func (c *Controller) Run(ctx context.Context, text string) (domain.Result, error) {
	return c.RunTimeout(ctx, text, c.cmdTimeout)
}

// RunTimeout is Run with an explicit per-command timeout.
func (c *Controller) RunTimeout(ctx context.Context, text string, timeout time.Duration) (domain.Result, error) {
	disp, err := c.ensureSession()
	if err != nil {
		return domain.Result{}, err
	}
	return disp.Submit(ctx, text, timeout)
}

// RunConsole executes a native CLI command through the MI interpreter
// bridge and returns its result; console output is collected on
// Result.Output.
func (c *Controller) RunConsole(ctx context.Context, cliCmd string) (domain.Result, error) {
	return c.Run(ctx, "-interpreter-exec console "+quoteConsole(cliCmd))
}

// ConsoleText runs a CLI command and returns its console output as
// plain text, surfacing a command-level failure as the debugger's own
// message.
func (c *Controller) ConsoleText(ctx context.Context, cliCmd string) (string, error) {
	res, err := c.RunConsole(ctx, cliCmd)
	if err != nil {
		return "", err
	}
	if res.Failed() {
		return "", fmt.Errorf("debugger: %s", res.ErrorMessage())
	}
	return res.ConsoleText(), nil
}

// VerifyLoaded checks whether the debugger still has an executable and
// symbol context, using the same `info files` heuristic a human would.
func (c *Controller) VerifyLoaded(ctx context.Context) bool {
	if c.State() != domain.SessionLoaded {
		return false
	}
	text, err := c.ConsoleText(ctx, "info files")
	if err != nil {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "no executable file now") || strings.Contains(lower, "no symbol file now") {
		return false
	}
	return true
}

// ReapplyTarget re-issues the load commands for the recorded target,
// recovering a session whose context was clobbered by a stray command.
func (c *Controller) ReapplyTarget(ctx context.Context) error {
	target := c.Target()
	if target.ExecutablePath == "" || target.CorePath == "" {
		return domain.ErrSessionNotLoaded
	}

	c.mu.Lock()
	disp := c.disp
	c.mu.Unlock()
	if disp == nil {
		return c.Load(ctx, target.ExecutablePath, target.CorePath)
	}

	if err := c.applyTarget(ctx, disp, target.ExecutablePath, target.CorePath); err != nil {
		return err
	}
	c.mu.Lock()
	c.state = domain.SessionLoaded
	c.mu.Unlock()
	return nil
}

// Close tears the session down: pending commands fail, subscriber
// streams close, the subprocess is killed.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.teardownLocked()
	c.state = domain.SessionTerminated
	c.mu.Unlock()
	return nil
}

// ensureSession spawns a debugger process on first use so that raw
// passthrough works pre-load.
func (c *Controller) ensureSession() (*Dispatcher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disp != nil {
		return c.disp, nil
	}
	// A crashed session stays fatal to every future caller until an
	// explicit Load replaces it.
	if c.state == domain.SessionTerminated {
		return nil, domain.ErrProcessTerminated
	}
	return c.spawnLocked()
}

func (c *Controller) spawnLocked() (*Dispatcher, error) {
	disp := NewDispatcher(nil, c.diag)
	sink := &sessionSink{controller: c, router: c.router, disp: disp}
	proc, err := startProcess(c.launcher, c.gdbPath, sink, c.diag)
	if err != nil {
		return nil, err
	}
	disp.writer = proc

	c.proc = proc
	c.disp = disp
	c.sink = sink
	return disp, nil
}

// teardownLocked cancels every pending command, closes all subscriber
// streams and kills the subprocess. Callers hold c.mu; the router has
// its own lock.
func (c *Controller) teardownLocked() {
	if c.disp == nil && c.proc == nil {
		return
	}
	if c.disp != nil {
		c.disp.fail(domain.ErrSessionClosed)
	}
	if c.proc != nil {
		_ = c.proc.Kill()
	}
	c.proc = nil
	c.disp = nil
	c.sink = nil
	c.state = domain.SessionUnloaded
	c.router.CloseAll()
}

// quoteConsole wraps a CLI command for `-interpreter-exec console`,
// escaping quotes and backslashes so the argument survives MI parsing.
func quoteConsole(cliCmd string) string {
	escaped := strings.ReplaceAll(cliCmd, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}
