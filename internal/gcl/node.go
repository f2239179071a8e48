package gcl

import (
	"context"
	"log"
	"sync"

	"github.com/rechain/rechain/internal/storage"
)

// Node manages the lifecycle of the devp2p-based peer discovery layer used
// by the CLI's --transport=devp2p mode. It does not run the reactor
// itself: cmd/rechain wires a consensus.Reactor against whichever
// Moderator (NetModerator over libp2p gossip, or a devp2p-backed one
// built on this Node's P2PServer) the operator configured.
type Node struct {
	store  storage.Store
	config *Config

	p2p    *P2PServer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds the GCL node configuration.
type Config struct {
	Port   int
	Seeds  []string
	NodeID string
}

// NewNode creates a new GCL node over store. A nil config gets sensible
// defaults.
func NewNode(store storage.Store, config *Config) (*Node, error) {
	if config == nil {
		config = &Config{Port: 26656, NodeID: "local-node"}
	}
	return &Node{store: store, config: config}, nil
}

// Start starts the node's P2P server and its background run loop.
func (n *Node) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	p2pServer, err := NewP2PServer(n.config)
	if err != nil {
		cancel()
		return err
	}
	if err := p2pServer.Start(); err != nil {
		cancel()
		return err
	}
	n.p2p = p2pServer

	n.wg.Add(1)
	go n.run(ctx)

	log.Printf("GCL node started on port %d", n.config.Port)
	return nil
}

// P2P returns the underlying P2P server, valid once Start has returned.
func (n *Node) P2P() *P2PServer {
	return n.p2p
}

// Stop gracefully stops the GCL node.
func (n *Node) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	if n.p2p != nil {
		return n.p2p.Stop()
	}
	return nil
}

func (n *Node) run(ctx context.Context) {
	defer n.wg.Done()
	<-ctx.Done()
}
