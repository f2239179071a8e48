package consensus

import (
	"fmt"
	"sync"
)

type validatorEntry struct {
	rng       HeightRange
	validator Validator
}

type stepKey struct {
	height    Height
	round     Round
	validator Validator
}

// Metadata is the reactor's authoritative in-memory state: the validator
// roll, authorized blocks and proposals, and per-validator step progress.
// It owns commit-driven garbage collection: once a height is committed,
// every entry at or below that height is purged.
type Metadata struct {
	mu sync.Mutex

	validators []validatorEntry

	authorizedBlocks map[Height]BlockID
	proposeBlocks    map[Height]BlockID
	steps            map[stepKey]Step

	committedHeight Height
	committedRounds uint64
	hasCommitted    bool
}

// NewMetadata returns an empty Metadata store with no committed height.
func NewMetadata() *Metadata {
	return &Metadata{
		authorizedBlocks: make(map[Height]BlockID),
		proposeBlocks:    make(map[Height]BlockID),
		steps:            make(map[stepKey]Step),
		committedHeight:  HeightNever,
	}
}

// AddValidator enrolls validator as active over [fromHeight,
// fromHeight+validity). Validators are never explicitly removed; they fall
// out of scope when GC purges a range whose end has passed, or immediately
// if their range has already expired by the time they're added.
func (m *Metadata) AddValidator(fromHeight Height, validity uint64, validator Validator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := fromHeight + Height(validity)
	m.validators = append(m.validators, validatorEntry{
		rng:       HeightRange{Start: fromHeight, End: end},
		validator: validator,
	})
}

// ValidatorsAtHeight returns the canonically address-sorted set of
// validators active at height.
func (m *Metadata) ValidatorsAtHeight(height Height) []Validator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validatorsAtHeightLocked(height)
}

func (m *Metadata) validatorsAtHeightLocked(height Height) []Validator {
	var out []Validator
	for _, e := range m.validators {
		if e.rng.Contains(height) {
			out = append(out, e.validator)
		}
	}
	return sortValidators(out)
}

// ValidatorsAtHeightCount is the size of the validator set at height.
func (m *Metadata) ValidatorsAtHeightCount(height Height) int {
	return len(m.ValidatorsAtHeight(height))
}

// AuthorizeBlock idempotently records blockID as the authorized commit
// candidate for height. Heights at or below committedHeight+1 that have
// already been superseded are ignored, matching the original's
// stale-height guard.
func (m *Metadata) AuthorizeBlock(height Height, blockID BlockID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isStaleLocked(height) {
		return
	}
	if _, exists := m.authorizedBlocks[height]; !exists {
		m.authorizedBlocks[height] = blockID
	}
}

// AuthorizeBlockPropose idempotently records blockID as the proposed block
// for height, under the same staleness guard as AuthorizeBlock.
func (m *Metadata) AuthorizeBlockPropose(height Height, blockID BlockID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isStaleLocked(height) {
		return
	}
	if _, exists := m.proposeBlocks[height]; !exists {
		m.proposeBlocks[height] = blockID
	}
}

func (m *Metadata) isStaleLocked(height Height) bool {
	if !m.hasCommitted {
		return false
	}
	return height <= m.committedHeight
}

// IsBlockAuthorized reports whether blockID is the authorized commit
// candidate for height.
func (m *Metadata) IsBlockAuthorized(height Height, blockID BlockID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	got, ok := m.authorizedBlocks[height]
	return ok && got == blockID
}

// AuthorizedPropose returns the proposed block for height, if any.
func (m *Metadata) AuthorizedPropose(height Height) (BlockID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.proposeBlocks[height]
	return b, ok
}

// CommittedHeight returns the last committed height, or HeightNever if
// nothing has been committed yet.
func (m *Metadata) CommittedHeight() Height {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committedHeight
}

// CommittedRounds returns the running total of rounds consumed across all
// committed heights, used by wall-clock round computation.
func (m *Metadata) CommittedRounds() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committedRounds
}

// Commit finalizes height with round having been the deciding round,
// advances committedHeight/committedRounds, and garbage-collects every
// entry at or below height. Returns ErrVoteInconsistent if height does not
// immediately follow the current committed height.
func (m *Metadata) Commit(height Height, round Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expected := m.committedHeight + 1 // wraps HeightNever+1 -> 0 on the first commit
	if height != expected {
		return fmt.Errorf("commit height %d: %w (expected %d)", height, ErrVoteInconsistent, expected)
	}

	m.committedHeight = height
	m.hasCommitted = true
	m.committedRounds += 1 + uint64(round)

	m.gcLocked(height)
	return nil
}

func (m *Metadata) gcLocked(height Height) {
	for h := range m.authorizedBlocks {
		if h <= height {
			delete(m.authorizedBlocks, h)
		}
	}
	for h := range m.proposeBlocks {
		if h <= height {
			delete(m.proposeBlocks, h)
		}
	}
	for k := range m.steps {
		if k.height <= height {
			delete(m.steps, k)
		}
	}
	kept := m.validators[:0]
	for _, e := range m.validators {
		if e.rng.End != HeightNever && e.rng.End <= height {
			continue
		}
		kept = append(kept, e)
	}
	m.validators = kept
}

// StepCount returns how many validators at height/round have reached step
// or any higher step, the quantity the BFT threshold is evaluated against.
func (m *Metadata) StepCount(height Height, round Round, step Step) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	thresholds := make(map[Step]struct{})
	for _, s := range step.Upto() {
		thresholds[s] = struct{}{}
	}
	count := 0
	for k, s := range m.steps {
		if k.height != height || k.round != round {
			continue
		}
		if _, ok := thresholds[s]; ok {
			count++
		}
	}
	return count
}

// ValidatorStep returns the highest step validator has reached at
// height/round.
func (m *Metadata) ValidatorStep(height Height, round Round, validator Validator) Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.steps[stepKey{height, round, validator}]
}

// UpgradeValidatorStep advances validator's recorded step at height/round
// to step if step is strictly greater than what is already recorded.
// Returns true if the step advanced, false if it was a no-op.
func (m *Metadata) UpgradeValidatorStep(height Height, round Round, validator Validator, step Step) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := stepKey{height, round, validator}
	if m.steps[k] >= step {
		return false
	}
	m.steps[k] = step
	return true
}

// Validate checks that validator is a member of the validator set at
// height and that signature is a valid signature by validator over digest.
func (m *Metadata) Validate(kc Keychain, height Height, validator Validator, signature []byte, digest [32]byte) error {
	m.mu.Lock()
	members := m.validatorsAtHeightLocked(height)
	m.mu.Unlock()

	found := false
	for _, v := range members {
		if v == validator {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("validate: %w", ErrValidatorNotFound)
	}
	if err := kc.Verify(signature, validator, digest); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}
