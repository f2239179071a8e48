package consensus

import (
	"context"
	"sync"
	"time"
)

// FakeModerator is an in-memory, single-node Moderator for tests. It
// translates the original test harness's DummyModerator: a clock the test
// controls, an inbound FIFO queue, and an outbound log a test can assert
// against.
type FakeModerator struct {
	mu       sync.Mutex
	now      time.Time
	inbound  []Message
	outbound []Message
}

// NewFakeModerator creates a FakeModerator whose clock starts at now.
func NewFakeModerator(now time.Time) *FakeModerator {
	return &FakeModerator{now: now}
}

func (f *FakeModerator) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *FakeModerator) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Push appends msg to the inbound queue, as if delivered by a peer.
func (f *FakeModerator) Push(msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, msg)
}

func (f *FakeModerator) Inbound(context.Context) (Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 {
		return Message{}, false, nil
	}
	msg := f.inbound[0]
	f.inbound = f.inbound[1:]
	return msg, true, nil
}

func (f *FakeModerator) InboundBlocking(ctx context.Context) (Message, error) {
	for {
		msg, ok, err := f.Inbound(ctx)
		if err != nil {
			return Message{}, err
		}
		if ok {
			return msg, nil
		}
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *FakeModerator) Outbound(_ context.Context, msg Message, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outbound = append(f.outbound, msg)
	return nil
}

func (f *FakeModerator) Rebound(_ context.Context, msg Message, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, msg)
	return nil
}

// Outbox returns a snapshot of everything sent via Outbound, in order.
func (f *FakeModerator) Outbox() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.outbound...)
}

// TakeEvent removes and returns the first outbound message carrying an
// Event of kind, or false if none is queued.
func (f *FakeModerator) TakeEvent(kind EventKind) (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, msg := range f.outbound {
		if msg.Event != nil && msg.Event.Kind == kind {
			f.outbound = append(f.outbound[:i], f.outbound[i+1:]...)
			return *msg.Event, true
		}
	}
	return Event{}, false
}
