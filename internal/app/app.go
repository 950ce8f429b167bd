// Package app wires the REST client, the signaling channel, the call
// manager, and the conversation syncer into one authenticated client
// session.
package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zoqapp/zoq-go/internal/api"
	"github.com/zoqapp/zoq-go/internal/call"
	"github.com/zoqapp/zoq-go/internal/chat"
	"github.com/zoqapp/zoq-go/internal/config"
	"github.com/zoqapp/zoq-go/internal/media"
	"github.com/zoqapp/zoq-go/internal/signaling"
	"github.com/zoqapp/zoq-go/internal/util"
)

// Client is one authenticated Zoq session.
type Client struct {
	Self  api.User
	API   *api.Client
	Chat  *chat.Syncer
	Calls *call.Manager

	ch *signaling.Channel
}

// Connect establishes the signaling channel for an already-authenticated
// REST client, waits for the relay's authentication ack, and wires the event
// subscriptions. Callers own the returned Client and must Close it.
func Connect(ctx context.Context, cfg config.Config, rest *api.Client, self api.User) (*Client, error) {
	ch, err := signaling.Connect(ctx, cfg.SocketURL, rest.Token())
	if err != nil {
		return nil, err
	}
	if err := ch.WaitAuthenticated(ctx); err != nil {
		ch.Close()
		return nil, fmt.Errorf("relay authentication: %w", err)
	}

	c := &Client{
		Self:  self,
		API:   rest,
		Chat:  chat.NewSyncer(rest, channelEmitter{ch}, self.ID),
		Calls: call.NewManager(channelSignaler{ch}, media.DeviceSource{}, cfg.CallTimeout),
		ch:    ch,
	}
	c.subscribe()
	return c, nil
}

// subscribe routes inbound relay events to their owning component. Each
// component subscribes only to its own event types.
func (c *Client) subscribe() {
	c.ch.On(signaling.EventNewMessage, func(data json.RawMessage) {
		var p signaling.NewMessagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			util.LogWarning("bad new_message payload: %v", err)
			return
		}
		c.Chat.HandleNewMessage(api.Message{
			ID:         p.ID,
			FromUserID: p.FromUserID,
			ToUserID:   p.ToUserID,
			Content:    p.Content,
			CreatedAt:  p.CreatedAt,
		})
		// The local update keeps the UI live; the authoritative list (unread
		// counts included) still comes from the backend.
		go func() {
			if err := c.Chat.LoadConversations(context.Background()); err != nil {
				util.LogDebug("conversation refresh failed: %v", err)
			}
		}()
	})

	c.ch.On(signaling.EventIncomingCall, func(data json.RawMessage) {
		var p signaling.IncomingCallPayload
		if err := json.Unmarshal(data, &p); err != nil {
			util.LogWarning("bad incoming_call payload: %v", err)
			return
		}
		if p.Type == "answer" {
			// Some relays fan answers out through the same event.
			c.Calls.HandleCallAccepted(p.Signal)
			return
		}
		c.Calls.HandleIncomingCall(p.FromUserID, p.FromUsername, p.Signal)
	})

	c.ch.On(signaling.EventCallAccepted, func(data json.RawMessage) {
		var p signaling.CallAcceptedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			util.LogWarning("bad call_accepted payload: %v", err)
			return
		}
		c.Calls.HandleCallAccepted(p.Signal)
	})

	c.ch.On(signaling.EventICECandidate, func(data json.RawMessage) {
		var p signaling.ICECandidatePayload
		if err := json.Unmarshal(data, &p); err != nil {
			util.LogWarning("bad ice_candidate payload: %v", err)
			return
		}
		c.Calls.HandleCandidate(p.Candidate)
	})

	c.ch.On(signaling.EventCallEnded, func(json.RawMessage) {
		c.Calls.HandleCallEnded()
	})
}

// Channel exposes the underlying signaling channel (read-only use).
func (c *Client) Channel() *signaling.Channel { return c.ch }

// Done is closed when the signaling transport drops. An in-flight call is
// not ended by transport loss; only hangup or the watchdog ends it.
func (c *Client) Done() <-chan struct{} { return c.ch.Done() }

// Close hangs up any live call and tears down the channel.
func (c *Client) Close() {
	c.Calls.Close()
	c.ch.Close()
}
