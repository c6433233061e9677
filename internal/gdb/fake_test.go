package gdb

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"testing"
)

// fakeGDB is a scripted stand-in for the debugger process, wired over
// in-memory pipes. respond receives the token prefix and the command
// text and returns the raw output lines (the prompt is appended
// automatically).
type fakeGDB struct {
	respond func(token, cmd string) []string

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	killOnce sync.Once
	exited   chan struct{}
}

func newFakeGDB(respond func(token, cmd string) []string) *fakeGDB {
	f := &fakeGDB{
		respond: respond,
		exited:  make(chan struct{}),
	}
	f.stdinR, f.stdinW = io.Pipe()
	f.stdoutR, f.stdoutW = io.Pipe()
	go f.serve()
	return f
}

func (f *fakeGDB) launcher(string) (procHandle, error) {
	return f, nil
}

func (f *fakeGDB) Stdin() io.Writer  { return f.stdinW }
func (f *fakeGDB) Stdout() io.Reader { return f.stdoutR }
func (f *fakeGDB) Stderr() io.Reader { return nil }

func (f *fakeGDB) Kill() error {
	f.killOnce.Do(func() {
		f.stdinR.Close()
		f.stdoutW.Close()
		close(f.exited)
	})
	return nil
}

func (f *fakeGDB) Wait() error {
	<-f.exited
	return nil
}

func (f *fakeGDB) serve() {
	// Startup turn, as gdb emits before the first command.
	f.writeLines([]string{`=thread-group-added,id="i1"`})

	scanner := bufio.NewScanner(f.stdinR)
	for scanner.Scan() {
		line := scanner.Text()
		token := line[:tokenLen(line)]
		cmd := line[len(token):]
		f.writeLines(f.respond(token, cmd))
	}
}

func (f *fakeGDB) writeLines(lines []string) {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("(gdb)\n")
	_, _ = io.WriteString(f.stdoutW, b.String())
}

func tokenLen(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] < '0' || line[i] > '9' {
			return i
		}
	}
	return len(line)
}

// respondDone acknowledges every command with a bare ^done.
func respondDone(token, _ string) []string {
	return []string{token + "^done"}
}

func newFakeController(t *testing.T, respond func(token, cmd string) []string, opts ...Option) (*Controller, *fakeGDB) {
	t.Helper()
	fake := newFakeGDB(respond)
	opts = append([]Option{WithLauncher(fake.launcher)}, opts...)
	c := NewController(opts...)
	t.Cleanup(func() {
		_ = c.Close()
		_ = fake.Kill()
	})
	return c, fake
}
