package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide session activity counter.
var Stats = &stats{}

type stats struct {
	MessagesSent  atomic.Int64 // outbound chat messages (socket or REST)
	MessagesRecv  atomic.Int64 // inbound new_message events
	CallsPlaced   atomic.Int64 // outbound call sessions created
	CallsAnswered atomic.Int64 // accepted incoming call sessions
	RESTCalls     atomic.Int64 // REST round trips issued
}

func (s *stats) AddMessageSent() { s.MessagesSent.Add(1) }
func (s *stats) AddMessageRecv() { s.MessagesRecv.Add(1) }
func (s *stats) AddCallPlaced()  { s.CallsPlaced.Add(1) }
func (s *stats) AddCallAnswer()  { s.CallsAnswered.Add(1) }
func (s *stats) AddRESTCall()    { s.RESTCalls.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs session activity
// every 30 seconds. Quiet intervals are skipped. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv, prevREST int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.MessagesSent.Load()
				recv := Stats.MessagesRecv.Load()
				rest := Stats.RESTCalls.Load()

				dSent := sent - prevSent
				dRecv := recv - prevRecv
				dREST := rest - prevREST

				if dSent > 0 || dRecv > 0 || dREST > 0 {
					pterm.DefaultLogger.Info(formatStats(dSent, dRecv, dREST))
				}

				prevSent = sent
				prevRecv = recv
				prevREST = rest

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a formatted string of interval activity for display in the logger.
func formatStats(sent, recv, rest int64) string {
	return fmt.Sprintf("Msg: %2d↑ %2d↓ | REST: %2d", sent, recv, rest)
}
