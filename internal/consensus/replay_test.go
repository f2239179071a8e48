package consensus

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMemStoreKeyNotFound = errors.New("memstore: key not found")

// memStore is a minimal in-memory storage.Store double, sufficient for
// exercising ReplayBuffer without a real Badger file or a running CAS.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, errMemStoreKeyNotFound
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *memStore) Delete(_ context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *memStore) Has(_ context.Context, key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[string(key)]
	return ok, nil
}

func (s *memStore) Iterate(_ context.Context, prefix []byte, fn func(key, value []byte) error) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()
	for _, k := range keys {
		s.mu.Lock()
		v := s.data[k]
		s.mu.Unlock()
		if err := fn([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) Close() error { return nil }

func TestNewReplayBufferWipesPriorContents(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.Set(ctx, []byte(replayKeyPrefix+"stale"), []byte("junk")))

	_, err := NewReplayBuffer(ctx, store)
	require.NoError(t, err)

	ok, err := store.Has(ctx, []byte(replayKeyPrefix+"stale"))
	require.NoError(t, err)
	assert.False(t, ok, "a fresh replay buffer must not carry over entries from a previous run")
}

func TestReplayBufferRecordAndReplay(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	rb, err := NewReplayBuffer(ctx, store)
	require.NoError(t, err)

	kc := NewMemoryKeychain()
	validator, err := kc.Insert(HeightRange{Start: 0, End: HeightNever}, "password")
	require.NoError(t, err)

	vote, err := SignVote(ctx, kc, 3, 1, StepPrecommit, BlockID{0xAB})
	require.NoError(t, err)
	require.NoError(t, rb.Record(ctx, vote))

	metadata := NewMetadata()
	metadata.AddValidator(0, uint64(HeightNever), validator)

	require.NoError(t, rb.Replay(ctx, metadata, kc))
	assert.Equal(t, StepPrecommit, metadata.ValidatorStep(3, 1, validator))
}

func TestReplayBufferRecordOverwritesSameKey(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	rb, err := NewReplayBuffer(ctx, store)
	require.NoError(t, err)

	kc := NewMemoryKeychain()
	validator, err := kc.Insert(HeightRange{Start: 0, End: HeightNever}, "password")
	require.NoError(t, err)

	first, err := SignVote(ctx, kc, 0, 0, StepPrevote, BlockID{0x01})
	require.NoError(t, err)
	require.NoError(t, rb.Record(ctx, first))

	second, err := SignVote(ctx, kc, 0, 0, StepPrecommit, BlockID{0x01})
	require.NoError(t, err)
	require.NoError(t, rb.Record(ctx, second))

	var count int
	require.NoError(t, store.Iterate(ctx, []byte(replayKeyPrefix), func(_, _ []byte) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count, "a later vote for the same height/round/validator replaces the earlier entry")

	metadata := NewMetadata()
	metadata.AddValidator(0, uint64(HeightNever), validator)
	require.NoError(t, rb.Replay(ctx, metadata, kc))
	assert.Equal(t, StepPrecommit, metadata.ValidatorStep(0, 0, validator))
}

func TestReplayBufferSkipsVotesThatFailValidation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	rb, err := NewReplayBuffer(ctx, store)
	require.NoError(t, err)

	kc := NewMemoryKeychain()
	validator, err := kc.Insert(HeightRange{Start: 0, End: HeightNever}, "password")
	require.NoError(t, err)

	vote, err := SignVote(ctx, kc, 0, 0, StepPrevote, BlockID{0x01})
	require.NoError(t, err)
	vote.Signature[0] ^= 0xFF
	require.NoError(t, rb.Record(ctx, vote))

	metadata := NewMetadata()
	metadata.AddValidator(0, uint64(HeightNever), validator)

	require.NoError(t, rb.Replay(ctx, metadata, kc))
	assert.Equal(t, Step(0), metadata.ValidatorStep(0, 0, validator), "a tampered recorded vote must not be replayed")
}
