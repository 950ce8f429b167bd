package app

import (
	"encoding/json"

	"github.com/zoqapp/zoq-go/internal/signaling"
)

// channelSignaler adapts the signaling channel to the call package's
// Signaler interface.
type channelSignaler struct {
	ch *signaling.Channel
}

func (c channelSignaler) CallUser(toUserID string, signal json.RawMessage, typ string) error {
	return c.ch.Emit(signaling.EventCallUser, signaling.CallUserPayload{
		ToUserID: toUserID,
		Signal:   signal,
		Type:     typ,
	})
}

func (c channelSignaler) AcceptCall(toUserID string, signal json.RawMessage) error {
	return c.ch.Emit(signaling.EventCallAccepted, signaling.CallAcceptedPayload{
		ToUserID: toUserID,
		Signal:   signal,
	})
}

func (c channelSignaler) SendCandidate(toUserID string, candidate json.RawMessage) error {
	return c.ch.Emit(signaling.EventICECandidate, signaling.ICECandidatePayload{
		ToUserID:  toUserID,
		Candidate: candidate,
	})
}

func (c channelSignaler) EndCall(toUserID string) error {
	return c.ch.Emit(signaling.EventEndCall, signaling.EndCallPayload{ToUserID: toUserID})
}

// channelEmitter adapts the signaling channel to the chat package's Emitter
// interface.
type channelEmitter struct {
	ch *signaling.Channel
}

func (c channelEmitter) Authenticated() bool {
	return c.ch.State() == signaling.StateAuthenticated
}

func (c channelEmitter) SendMessage(toUserID, content string) error {
	return c.ch.Emit(signaling.EventSendMessage, signaling.SendMessagePayload{
		ToUserID: toUserID,
		Content:  content,
	})
}
