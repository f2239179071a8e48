package consensus

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/rechain/rechain/internal/storage"
)

// ReplayBuffer records every vote the reactor has upgraded a step for
// within the current process run, so the in-memory Metadata can be rebuilt
// after a panic/recover or a planned re-exec of the same process without
// losing the in-flight round. It is explicitly not a durability
// mechanism across a fresh process start: NewReplayBuffer truncates any
// prior contents, matching the "no persistence across restarts"
// requirement.
type ReplayBuffer struct {
	store storage.Store
}

// NewReplayBuffer wraps store as a replay buffer, wiping anything already
// in it so each run starts clean.
func NewReplayBuffer(ctx context.Context, store storage.Store) (*ReplayBuffer, error) {
	rb := &ReplayBuffer{store: store}
	if err := rb.reset(ctx); err != nil {
		return nil, err
	}
	return rb, nil
}

func (rb *ReplayBuffer) reset(ctx context.Context) error {
	var stale [][]byte
	err := rb.store.Iterate(ctx, []byte(replayKeyPrefix), func(key, _ []byte) error {
		stale = append(stale, append([]byte(nil), key...))
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay buffer reset: %w", err)
	}
	for _, key := range stale {
		if err := rb.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("replay buffer reset: %w", err)
		}
	}
	return nil
}

const replayKeyPrefix = "consensus/replay/"

// Record appends vote to the buffer, keyed by height/round/validator so a
// later vote for the same key overwrites an earlier one.
func (rb *ReplayBuffer) Record(ctx context.Context, vote Vote) error {
	key := replayKey(vote.Height, vote.Round, vote.Validator)
	payload, err := json.Marshal(vote)
	if err != nil {
		return fmt.Errorf("replay buffer record: %w", err)
	}
	return rb.store.Set(ctx, key, payload)
}

// Replay rebuilds metadata's step table from every recorded vote, re-
// validating each one against keychain before applying it.
func (rb *ReplayBuffer) Replay(ctx context.Context, metadata *Metadata, keychain Keychain) error {
	err := rb.store.Iterate(ctx, []byte(replayKeyPrefix), func(_, value []byte) error {
		var vote Vote
		if err := json.Unmarshal(value, &vote); err != nil {
			return nil
		}
		if err := metadata.Validate(keychain, vote.Height, vote.Validator, vote.Signature, vote.digest()); err != nil {
			return nil
		}
		metadata.UpgradeValidatorStep(vote.Height, vote.Round, vote.Validator, vote.Step)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	return nil
}

func replayKey(height Height, round Round, validator Validator) []byte {
	buf := make([]byte, len(replayKeyPrefix)+8+8+len(validator))
	n := copy(buf, replayKeyPrefix)
	binary.BigEndian.PutUint64(buf[n:], uint64(height))
	n += 8
	binary.BigEndian.PutUint64(buf[n:], uint64(round))
	n += 8
	copy(buf[n:], validator[:])
	return buf
}
