package gdb

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sprookie/aigdb/internal/domain"
)

// lineWriter is the single write path to the debugger's stdin.
type lineWriter interface {
	WriteLine(text string) error
}

type outcome struct {
	result domain.Result
	err    error
}

// pendingCommand is the dispatcher's book-keeping for one submitted
// command. The completion channel has capacity 1 so fulfilment never
// blocks the reader goroutine.
type pendingCommand struct {
	token       uint64
	text        string
	submittedAt time.Time
	result      *domain.Result
	output      []domain.Record
	done        chan outcome
	abandoned   bool
}

// Dispatcher serializes command submission to the debugger. Exactly one
// command is in flight at a time; concurrent callers queue FIFO and
// each waits on its own completion slot, so a pending command never
// gates async record delivery.
type Dispatcher struct {
	writer lineWriter
	diag   func(string)
	gate   *fifoGate

	mu        sync.Mutex
	nextToken uint64
	pending   map[uint64]*pendingCommand
	inflight  *pendingCommand
	downErr   error
}

func NewDispatcher(writer lineWriter, diag func(string)) *Dispatcher {
	if diag == nil {
		diag = func(string) {}
	}
	return &Dispatcher{
		writer:  writer,
		diag:    diag,
		gate:    newFIFOGate(),
		pending: make(map[uint64]*pendingCommand),
	}
}

// Submit writes text (token-prefixed) to the debugger and waits for the
// matching result record, up to timeout. A result with class "error" is
// returned as a normal Result; Go errors mean the command never
// completed (timeout, dead session, cancelled context).
func (d *Dispatcher) Submit(ctx context.Context, text string, timeout time.Duration) (domain.Result, error) {
	// The budget covers queue wait too: a caller stuck behind a hung
	// command times out instead of blocking forever.
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.gate.acquire(ctx); err != nil {
		return domain.Result{}, d.submitErr(err, text, timeout)
	}

	pending, err := d.admit(text)
	if err != nil {
		d.gate.release()
		return domain.Result{}, err
	}

	if err := d.writer.WriteLine(fmt.Sprintf("%d%s", pending.token, text)); err != nil {
		d.evict(pending)
		d.gate.release()
		return domain.Result{}, fmt.Errorf("write command to debugger: %w", err)
	}

	select {
	case out := <-pending.done:
		if out.err != nil {
			return domain.Result{}, out.err
		}
		return out.result, nil
	case <-ctx.Done():
		d.abandon(pending)
		return domain.Result{}, d.submitErr(ctx.Err(), text, timeout)
	}
}

// submitErr maps an expired submission deadline to the retryable
// timeout error; caller cancellation passes through unchanged.
func (d *Dispatcher) submitErr(err error, text string, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("command %q after %s: %w", text, timeout, domain.ErrCommandTimeout)
	}
	return err
}

// admit assigns the next token and registers the pending entry. Tokens
// are strictly increasing for the session lifetime and never reused.
func (d *Dispatcher) admit(text string) (*pendingCommand, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.downErr != nil {
		return nil, d.downErr
	}

	d.nextToken++
	pending := &pendingCommand{
		token:       d.nextToken,
		text:        text,
		submittedAt: time.Now(),
		done:        make(chan outcome, 1),
	}
	d.pending[pending.token] = pending
	d.inflight = pending
	return pending, nil
}

func (d *Dispatcher) evict(pending *pendingCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, pending.token)
	if d.inflight == pending {
		d.inflight = nil
	}
}

// abandon removes a timed-out or cancelled command from the pending set
// while keeping the in-flight marker, so the eventual prompt still
// releases the serialization gate and the late result is discarded.
func (d *Dispatcher) abandon(pending *pendingCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-pending.done:
		// Completed between the caller giving up and this cleanup; the
		// gate was already released by promptSeen.
		return
	default:
	}
	delete(d.pending, pending.token)
	pending.abandoned = true
}

// deliver routes one result record to its pending command. Non-result
// records never reach here.
func (d *Dispatcher) deliver(rec domain.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var pending *pendingCommand
	switch {
	case rec.HasTok:
		pending = d.pending[rec.Token]
	default:
		pending = d.inflight
	}
	if pending == nil {
		if d.inflight != nil && d.inflight.abandoned && rec.HasTok && rec.Token == d.inflight.token {
			d.diag(fmt.Sprintf("discarding late result for timed-out command %d", rec.Token))
			d.inflight.result = &domain.Result{} // mark satisfied so promptSeen releases
			return
		}
		d.diag(fmt.Sprintf("protocol consistency: result token %d matches no pending command", rec.Token))
		return
	}

	pending.result = &domain.Result{
		Token:   pending.token,
		Class:   rec.Class,
		Payload: rec.Payload,
		Output:  pending.output,
	}
}

// captureOutput records a stream record emitted while a command is in
// flight; it becomes part of that command's Result.Output.
func (d *Dispatcher) captureOutput(rec domain.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inflight != nil && !d.inflight.abandoned {
		d.inflight.output = append(d.inflight.output, rec)
	}
}

// promptSeen marks the end of the current command's output turn. The
// buffered result (if any) is released to the waiting caller and the
// next queued command may proceed. All async records the debugger
// interleaved before the result were already published by then, because
// the reader routes records in arrival order on a single goroutine.
func (d *Dispatcher) promptSeen() {
	d.mu.Lock()
	pending := d.inflight
	if pending == nil || pending.result == nil {
		// Startup banner prompt, or mid-command prompt before the
		// result record: nothing to complete yet.
		d.mu.Unlock()
		return
	}
	d.inflight = nil
	delete(d.pending, pending.token)
	result := *pending.result
	result.Output = pending.output
	abandoned := pending.abandoned
	d.mu.Unlock()

	if !abandoned {
		pending.done <- outcome{result: result}
	}
	d.gate.release()
}

// fail resolves every pending command with err and refuses future
// submissions. Called on process exit and session teardown.
func (d *Dispatcher) fail(err error) {
	d.mu.Lock()
	if d.downErr != nil {
		d.mu.Unlock()
		return
	}
	d.downErr = err
	waiting := make([]*pendingCommand, 0, len(d.pending))
	for _, pending := range d.pending {
		waiting = append(waiting, pending)
	}
	d.pending = make(map[uint64]*pendingCommand)
	d.inflight = nil
	d.mu.Unlock()

	for _, pending := range waiting {
		pending.done <- outcome{err: err}
	}
	d.gate.open(err)
}

// fifoGate is a capacity-1 admission gate with strict FIFO wakeup. A
// plain channel or mutex would not preserve submission order under
// contention.
type fifoGate struct {
	mu      sync.Mutex
	held    bool
	waiters *list.List
	err     error
}

func newFIFOGate() *fifoGate {
	return &fifoGate{waiters: list.New()}
}

func (g *fifoGate) acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.err != nil {
		err := g.err
		g.mu.Unlock()
		return err
	}
	if !g.held {
		g.held = true
		g.mu.Unlock()
		return nil
	}
	ready := make(chan error, 1)
	elem := g.waiters.PushBack(ready)
	g.mu.Unlock()

	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case err := <-ready:
			// Woken concurrently with cancellation: pass the slot on
			// rather than strand it.
			if err == nil {
				g.releaseLocked()
			}
			g.mu.Unlock()
			return ctx.Err()
		default:
			g.waiters.Remove(elem)
			g.mu.Unlock()
			return ctx.Err()
		}
	}
}

func (g *fifoGate) release() {
	g.mu.Lock()
	g.releaseLocked()
	g.mu.Unlock()
}

func (g *fifoGate) releaseLocked() {
	if front := g.waiters.Front(); front != nil {
		g.waiters.Remove(front)
		front.Value.(chan error) <- nil
		return
	}
	g.held = false
}

// open permanently fails the gate: current and future waiters get err.
func (g *fifoGate) open(err error) {
	g.mu.Lock()
	g.err = err
	for front := g.waiters.Front(); front != nil; front = g.waiters.Front() {
		g.waiters.Remove(front)
		front.Value.(chan error) <- err
	}
	g.held = false
	g.mu.Unlock()
}
