package api

import "time"

// Wire types mirror the backend's JSON exactly (snake_case, RFC 3339 times).

// User is the public profile of an account.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name,omitempty"`
	ProfilePic string    `json:"profile_pic,omitempty"`
	Bio        string    `json:"bio,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FullName   *string `json:"full_name,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	ProfilePic *string `json:"profile_pic,omitempty"`
}

// Post is one feed entry, enriched with the viewer's like state.
type Post struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	ProfilePic    string    `json:"profile_pic,omitempty"`
	Content       string    `json:"content"`
	MediaURL      string    `json:"media_url,omitempty"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	IsLiked       bool      `json:"is_liked"`
	CreatedAt     time.Time `json:"created_at"`
}

// Comment is one comment on a post.
type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	ProfilePic string    `json:"profile_pic,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is one direct message between two users.
type Message struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Conversation summarizes the message history with one counterpart.
type Conversation struct {
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	ProfilePic      string    `json:"profile_pic,omitempty"`
	LastMessage     string    `json:"last_message,omitempty"`
	UnreadCount     int       `json:"unread_count"`
	LastMessageTime time.Time `json:"last_message_time,omitzero"`
}

// FriendRequest is one pending friendship, enriched with the sender's profile.
type FriendRequest struct {
	ID             string    `json:"id"`
	FromUserID     string    `json:"from_user_id"`
	ToUserID       string    `json:"to_user_id"`
	FromUsername   string    `json:"from_username"`
	FromProfilePic string    `json:"from_profile_pic,omitempty"`
	Status         string    `json:"status"` // pending, accepted, rejected
	CreatedAt      time.Time `json:"created_at"`
}
