package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rechain/rechain/internal/gossip"
)

// NetModerator is the production Moderator: it carries Votes and
// Notifications as JSON-encoded payloads over a libp2p gossip fanout, and
// answers Requests locally since a Request/Response round-trip is always
// addressed to the local reactor instance.
type NetModerator struct {
	gossip *gossip.GossipProtocol

	mu      sync.Mutex
	inbound []Message
}

// NewNetModerator wires a NetModerator on top of an already-started
// gossip protocol, registering itself as the protocol's vote handler.
func NewNetModerator(g *gossip.GossipProtocol) *NetModerator {
	m := &NetModerator{gossip: g}
	g.OnVoteMessage(m.onPayload)
	return m
}

func (m *NetModerator) onPayload(payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	m.mu.Lock()
	m.inbound = append(m.inbound, msg)
	m.mu.Unlock()
}

func (m *NetModerator) Now() time.Time {
	return time.Now().UTC()
}

func (m *NetModerator) Inbound(context.Context) (Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inbound) == 0 {
		return Message{}, false, nil
	}
	msg := m.inbound[0]
	m.inbound = m.inbound[1:]
	return msg, true, nil
}

func (m *NetModerator) InboundBlocking(ctx context.Context) (Message, error) {
	for {
		msg, ok, err := m.Inbound(ctx)
		if err != nil {
			return Message{}, err
		}
		if ok {
			return msg, nil
		}
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (m *NetModerator) Outbound(_ context.Context, msg Message, _ time.Duration) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("net moderator outbound: %w", err)
	}
	return m.gossip.BroadcastVote(payload)
}

func (m *NetModerator) Rebound(_ context.Context, msg Message, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, msg)
	return nil
}
