// Package config holds the client configuration types.
package config

import "time"

// DefaultCallTimeout bounds how long a call may sit in negotiation before it
// is failed. Zero disables the watchdog entirely.
const DefaultCallTimeout = 30 * time.Second

// Config stores all parameters gathered from CLI flags and prompts.
type Config struct {
	APIBase   string // REST base URL, e.g. https://zoq.example.com/api
	SocketURL string // WebSocket URL of the signaling relay, e.g. wss://zoq.example.com/ws
	TokenPath string // where the bearer token is cached between runs

	CallTimeout time.Duration // negotiation watchdog; 0 = never time out
	Video       bool          // default call kind when placing a call
}
