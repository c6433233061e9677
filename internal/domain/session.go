package domain

import "time"

// SessionState tracks the lifecycle of one debugger session.
// Transitions are monotonic except Loaded -> Loading on explicit
// reload.
type SessionState string

const (
	SessionUnloaded   SessionState = "unloaded"
	SessionLoading    SessionState = "loading"
	SessionLoaded     SessionState = "loaded"
	SessionTerminated SessionState = "terminated"
)

// Target is an executable/core pair a session can be loaded with.
type Target struct {
	ExecutablePath string
	CorePath       string
	LastLoadedAt   time.Time
}
