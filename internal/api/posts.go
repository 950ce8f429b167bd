package api

import (
	"context"
	"strings"
)

// Feed returns the viewer's post feed, newest first.
func (c *Client) Feed(ctx context.Context) ([]Post, error) {
	var out []Post
	if err := c.do(ctx, "GET", "/posts/feed", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePost publishes a new post. mediaURL may be empty.
func (c *Client) CreatePost(ctx context.Context, content, mediaURL string) (*Post, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrValidation
	}
	in := map[string]string{"content": content}
	if mediaURL != "" {
		in["media_url"] = mediaURL
	}
	var out Post
	if err := c.do(ctx, "POST", "/posts", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleLike flips the viewer's like on a post and returns the new state.
func (c *Client) ToggleLike(ctx context.Context, postID string) (bool, error) {
	var out struct {
		Liked bool `json:"liked"`
	}
	if err := c.do(ctx, "POST", "/posts/"+postID+"/like", nil, &out); err != nil {
		return false, err
	}
	return out.Liked, nil
}

// DeletePost removes one of the viewer's own posts.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, "DELETE", "/posts/"+postID, nil, nil)
}

// Comments lists the comments on a post.
func (c *Client) Comments(ctx context.Context, postID string) ([]Comment, error) {
	var out []Comment
	if err := c.do(ctx, "GET", "/posts/"+postID+"/comments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddComment appends a comment to a post.
func (c *Client) AddComment(ctx context.Context, postID, content string) (*Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrValidation
	}
	in := map[string]string{"content": content}
	var out Comment
	if err := c.do(ctx, "POST", "/posts/"+postID+"/comments", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
