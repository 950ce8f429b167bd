package call

// Role fixes who generates the initial offer. It is set at session creation
// and never changes.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleResponder {
		return "responder"
	}
	return "initiator"
}

// Status is the call session's lifecycle state.
//
//	Connecting → Calling|Ringing → Connected → Ended
//
// Error is reachable from any non-terminal state. Ended and Error are
// terminal: a session never resumes, restarting a call creates a new one.
type Status int

const (
	StatusConnecting Status = iota
	StatusCalling
	StatusRinging
	StatusConnected
	StatusError
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusCalling:
		return "calling"
	case StatusRinging:
		return "ringing"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session can never leave this status.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusError
}
