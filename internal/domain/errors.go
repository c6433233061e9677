package domain

import "errors"

var (
	ErrProcessLaunch     = errors.New("debugger process launch failed")
	ErrProcessTerminated = errors.New("debugger process terminated")
	ErrCommandTimeout    = errors.New("debugger command timed out")
	ErrSessionNotLoaded  = errors.New("no core loaded in session")
	ErrLoadFailed        = errors.New("load of executable/core failed")
	ErrSessionClosed     = errors.New("session closed")
	ErrToolNotFound      = errors.New("tool not found")
	ErrTargetNotFound    = errors.New("target not found")
)
