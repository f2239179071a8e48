package consensus

import (
	"sync"

	"github.com/rechain/rechain/pkg/crdt"
)

// StakePool is a peripheral, eventually-consistent record of per-validator
// stake. It is advisory: the Reactor's BFT threshold counts validators,
// not stake weight, and never reads from StakePool directly. StakePool
// exists so gossiped stake updates (e.g. from an external staking
// contract) can be merged concurrently from multiple peers without a
// single writer, which is why it is built on CRDTs rather than the
// single-writer range map the original stake pool used.
type StakePool struct {
	mu      sync.Mutex
	nodeID  string
	stakes  map[Validator]*crdt.PNCounter
	members *crdt.ORSet
}

// NewStakePool creates an empty StakePool. nodeID identifies this
// replica's own increments within the underlying CRDTs.
func NewStakePool(nodeID string) *StakePool {
	return &StakePool{
		nodeID:  nodeID,
		stakes:  make(map[Validator]*crdt.PNCounter),
		members: crdt.NewORSet(nodeID),
	}
}

func (p *StakePool) counterLocked(v Validator) *crdt.PNCounter {
	c, ok := p.stakes[v]
	if !ok {
		c = crdt.NewPNCounter(p.nodeID)
		p.stakes[v] = c
	}
	return c
}

// Grant increases validator's stake by amount and marks it a pool member.
func (p *StakePool) Grant(validator Validator, amount int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counterLocked(validator).Increment(amount)
	p.members.Add(validator)
}

// Slash decreases validator's stake by amount without removing membership;
// a validator reaching zero stake is still tracked until explicitly
// evicted with Evict.
func (p *StakePool) Slash(validator Validator, amount int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counterLocked(validator).Decrement(amount)
}

// Evict removes validator from the active membership set. Its stake
// history is retained (PNCounter values never shrink on merge) but it no
// longer counts toward Members.
func (p *StakePool) Evict(validator Validator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members.Remove(validator)
}

// Stake returns validator's current net stake.
func (p *StakePool) Stake(validator Validator) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.stakes[validator]
	if !ok {
		return 0
	}
	v, _ := c.Value().(int64)
	return v
}

// Members returns the validators currently marked active in the pool.
func (p *StakePool) Members() []Validator {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Validator
	for v := range p.stakes {
		if p.members.Contains(v) {
			out = append(out, v)
		}
	}
	return sortValidators(out)
}

// TotalStaked sums the net stake of every active member.
func (p *StakePool) TotalStaked() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total int64
	for v, c := range p.stakes {
		if !p.members.Contains(v) {
			continue
		}
		if val, ok := c.Value().(int64); ok {
			total += val
		}
	}
	return total
}

// Merge folds another replica's StakePool state into p, resolving
// concurrent updates via each CRDT's own merge rule.
func (p *StakePool) Merge(other *StakePool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	for v, c := range other.stakes {
		local := p.counterLocked(v)
		if err := local.Merge(c); err != nil {
			return err
		}
	}
	return p.members.Merge(other.members)
}
