package signaling

import (
	"encoding/json"
	"time"
)

// Event names understood by the relay. Outbound and inbound names overlap
// where the relay fans an event out under the same name (ice_candidate,
// call_accepted).
const (
	EventAuthenticate  = "authenticate"
	EventAuthenticated = "authenticated"
	EventError         = "error"
	EventSendMessage   = "send_message"
	EventNewMessage    = "new_message"
	EventCallUser      = "call_user"
	EventIncomingCall  = "incoming_call"
	EventCallAccepted  = "call_accepted"
	EventICECandidate  = "ice_candidate"
	EventEndCall       = "end_call"
	EventCallEnded     = "call_ended"
)

// frame is the JSON structure exchanged over the WebSocket.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// AuthenticatePayload binds a bearer token to the connection.
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// AuthenticatedPayload is the relay's acknowledgment carrying the bound identity.
type AuthenticatedPayload struct {
	UserID string `json:"user_id"`
}

// ErrorPayload is the relay's rejection of a prior event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// SendMessagePayload asks the relay to persist and deliver a direct message.
type SendMessagePayload struct {
	ToUserID string `json:"to_user_id"`
	Content  string `json:"content"`
}

// NewMessagePayload is an authoritative message delivered by the relay.
type NewMessagePayload struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// CallUserPayload carries an SDP descriptor toward a counterpart. Type
// distinguishes the initial offer from a response.
type CallUserPayload struct {
	ToUserID string          `json:"to_user_id"`
	Signal   json.RawMessage `json:"signal"`
	Type     string          `json:"type"` // "offer" or "answer"
}

// IncomingCallPayload is the relay's fan-out of call_user to the callee.
type IncomingCallPayload struct {
	FromUserID     string          `json:"from_user_id"`
	FromUsername   string          `json:"from_username,omitempty"`
	FromProfilePic string          `json:"from_profile_pic,omitempty"`
	Signal         json.RawMessage `json:"signal"`
	Type           string          `json:"type"`
}

// CallAcceptedPayload carries the callee's answer descriptor. ToUserID is set
// on the outbound leg only; the relay strips it before fan-out.
type CallAcceptedPayload struct {
	ToUserID string          `json:"to_user_id,omitempty"`
	Signal   json.RawMessage `json:"signal"`
}

// ICECandidatePayload carries one trickled network candidate. ToUserID is set
// on the outbound leg only.
type ICECandidatePayload struct {
	ToUserID  string          `json:"to_user_id,omitempty"`
	Candidate json.RawMessage `json:"candidate"`
}

// EndCallPayload notifies the counterpart of a hangup.
type EndCallPayload struct {
	ToUserID string `json:"to_user_id"`
}
