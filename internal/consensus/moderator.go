package consensus

import (
	"context"
	"log"
	"time"
)

// Moderator is the reactor's sole I/O boundary. The reactor never opens a
// socket or starts a timer itself; it asks the Moderator for the time and
// for inbound/outbound message delivery, and only ever suspends at one of
// these calls.
type Moderator interface {
	// Now returns the current wall-clock time as the Moderator sees it,
	// letting tests substitute a controlled clock.
	Now() time.Time
	// Inbound performs one non-blocking poll of the inbound queue.
	Inbound(ctx context.Context) (Message, bool, error)
	// InboundBlocking waits for the next inbound message.
	InboundBlocking(ctx context.Context) (Message, error)
	// Outbound delivers msg to the transport, waiting up to timeout.
	Outbound(ctx context.Context, msg Message, timeout time.Duration) error
	// Rebound requeues msg onto the local inbound queue, waiting up to
	// timeout. Used to defer a future-round vote until its round arrives.
	Rebound(ctx context.Context, msg Message, timeout time.Duration) error
}

// Send is Outbound with errors logged and swallowed, matching the
// original Moderator's default send() helper: a failed broadcast is not
// fatal to the reactor loop.
func Send(ctx context.Context, m Moderator, msg Message, timeout time.Duration) {
	if err := m.Outbound(ctx, msg, timeout); err != nil {
		log.Printf("consensus: outbound delivery failed: %v", err)
	}
}

// Requeue is Rebound with errors logged and swallowed.
func Requeue(ctx context.Context, m Moderator, msg Message, timeout time.Duration) {
	if err := m.Rebound(ctx, msg, timeout); err != nil {
		log.Printf("consensus: requeue failed: %v", err)
	}
}
