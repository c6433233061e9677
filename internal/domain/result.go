package domain

// Result is the terminal outcome of one dispatched command. A class of
// "error" is a command-level failure reported by the debugger itself;
// callers treat it as a normal outcome, not a session fault.
type Result struct {
	Token   uint64
	Class   string
	Payload Fields

	// Output holds the stream records the debugger emitted between
	// command submission and the terminal result, in arrival order.
	// Console commands report their findings here rather than in the
	// result payload.
	Output []Record
}

// Failed reports whether the debugger rejected the command.
func (r Result) Failed() bool {
	return r.Class == "error"
}

// ErrorMessage returns the protocol-reported failure message, or ""
// for a successful result.
func (r Result) ErrorMessage() string {
	if !r.Failed() {
		return ""
	}
	return r.Payload.Str("msg")
}

// ConsoleText concatenates the console-stream output captured during
// the command. Trailing newlines of individual chunks are preserved.
func (r Result) ConsoleText() string {
	var text string
	for _, rec := range r.Output {
		if rec.Kind == KindConsoleStream {
			text += rec.Text
		}
	}
	return text
}
