package avatar

import "errors"

var (
	// ErrClosed is returned when posting to a session whose Run has ended.
	ErrClosed = errors.New("avatar: session closed")

	// ErrRunning is returned by Run when the session is already running.
	ErrRunning = errors.New("avatar: session already running")
)
