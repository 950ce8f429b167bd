package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/zoqapp/zoq-go/internal/util"
)

// Conversations lists the viewer's conversation summaries. The backend does
// not order them; callers sort by last message time.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.do(ctx, "GET", "/messages/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Thread returns the full message history with peerID, oldest first.
// Fetching a thread marks its inbound messages as read on the server.
func (c *Client) Thread(ctx context.Context, peerID string) ([]Message, error) {
	var out []Message
	if err := c.do(ctx, "GET", "/messages/"+peerID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage writes a direct message over REST. This is the fallback path
// when the signaling channel is unavailable.
func (c *Client) SendMessage(ctx context.Context, toUserID, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrValidation
	}
	in := map[string]string{"to_user_id": toUserID, "content": content}
	var out Message
	if err := c.do(ctx, "POST", "/messages", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadImage posts an image as multipart form data and returns the stored URL.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.base+"/upload/image", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	util.Stats.AddRESTCall()

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST /upload/image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.decodeError(resp)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return out.URL, nil
}
