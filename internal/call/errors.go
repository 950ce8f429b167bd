package call

import "errors"

var (
	// ErrBusy rejects a new call while a prior session has not reached a
	// terminal status.
	ErrBusy = errors.New("a call is already in progress")

	// ErrNegotiation marks a peer link that failed to establish or was
	// abruptly closed.
	ErrNegotiation = errors.New("negotiation failed")

	// ErrEnded rejects operations on a session that already terminated.
	ErrEnded = errors.New("session already ended")
)
