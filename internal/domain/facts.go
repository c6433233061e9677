package domain

// Typed facts decoded from specific MI command results. All immutable
// snapshots: re-collection replaces them wholesale.

// ThreadInfo describes one thread of the crashed process.
type ThreadInfo struct {
	ID       int        `json:"id"`
	TargetID string     `json:"targetId,omitempty"`
	Name     string     `json:"name,omitempty"`
	State    string     `json:"state"`
	Frame    *FrameInfo `json:"frame,omitempty"`
}

// ThreadList is the decoded `-thread-info` result.
type ThreadList struct {
	Threads   []ThreadInfo `json:"threads"`
	CurrentID int          `json:"currentThreadId,omitempty"`
}

// FrameInfo describes one stack frame.
type FrameInfo struct {
	Level    int    `json:"level"`
	Address  string `json:"addr,omitempty"`
	Function string `json:"func,omitempty"`
	File     string `json:"file,omitempty"`
	FullName string `json:"fullname,omitempty"`
	Line     int    `json:"line,omitempty"`
	From     string `json:"from,omitempty"`
}

// Backtrace is the decoded `-stack-list-frames` result for one thread.
type Backtrace struct {
	ThreadID int         `json:"threadId"`
	Frames   []FrameInfo `json:"frames"`
}

// Variable is one name/value pair from a locals or args listing.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// RegisterSet is a register dump of the selected thread.
type RegisterSet struct {
	ThreadID  int               `json:"threadId,omitempty"`
	Registers map[string]string `json:"registers"`
	Raw       string            `json:"raw,omitempty"`
}

// SignalInfo captures why the program stopped.
type SignalInfo struct {
	Name        string `json:"name,omitempty"`
	Meaning     string `json:"meaning,omitempty"`
	StopReason  string `json:"stopReason,omitempty"`
	Description string `json:"description,omitempty"`
}

// SharedLibrary is one entry of the loaded shared object list.
type SharedLibrary struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	SymsRead bool   `json:"symsRead"`
	Path     string `json:"path"`
}
