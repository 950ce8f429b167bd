package api

import (
	"context"
	"net/url"
	"strings"
)

// Friends lists the viewer's accepted friends.
func (c *Client) Friends(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.do(ctx, "GET", "/friends", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FriendRequests lists pending requests addressed to the viewer.
func (c *Client) FriendRequests(ctx context.Context) ([]FriendRequest, error) {
	var out []FriendRequest
	if err := c.do(ctx, "GET", "/friends/requests", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendFriendRequest asks userID for friendship.
func (c *Client) SendFriendRequest(ctx context.Context, userID string) error {
	return c.do(ctx, "POST", "/friends/request/"+userID, nil, nil)
}

// AcceptFriendRequest accepts a pending request by its id.
func (c *Client) AcceptFriendRequest(ctx context.Context, requestID string) error {
	return c.do(ctx, "POST", "/friends/accept/"+requestID, nil, nil)
}

// RejectFriendRequest discards a pending request by its id.
func (c *Client) RejectFriendRequest(ctx context.Context, requestID string) error {
	return c.do(ctx, "DELETE", "/friends/reject/"+requestID, nil, nil)
}

// SearchUsers finds accounts by username or full name.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrValidation
	}
	var out []User
	if err := c.do(ctx, "GET", "/users/search?q="+url.QueryEscape(query), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
