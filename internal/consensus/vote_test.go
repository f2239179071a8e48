package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestIsStableAndFieldSensitive(t *testing.T) {
	block := BlockID{0x01, 0x02}
	d1 := Digest(1, 2, block, StepPrevote)
	d2 := Digest(1, 2, block, StepPrevote)
	assert.Equal(t, d1, d2)

	assert.NotEqual(t, d1, Digest(2, 2, block, StepPrevote))
	assert.NotEqual(t, d1, Digest(1, 3, block, StepPrevote))
	assert.NotEqual(t, d1, Digest(1, 2, block, StepPrecommit))

	var otherBlock BlockID
	otherBlock[0] = 0xFF
	assert.NotEqual(t, d1, Digest(1, 2, otherBlock, StepPrevote))
}

func TestSignVoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	kc := NewMemoryKeychain()
	validator, err := kc.Insert(HeightRange{Start: 0, End: HeightNever}, "password")
	require.NoError(t, err)

	blockID := BlockID{0xAA}
	vote, err := SignVote(ctx, kc, 10, 2, StepPrevote, blockID)
	require.NoError(t, err)

	assert.Equal(t, validator, vote.Validator)
	assert.Equal(t, Height(10), vote.Height)
	assert.Equal(t, Round(2), vote.Round)
	assert.Equal(t, StepPrevote, vote.Step)
	assert.NoError(t, vote.Validate(kc))
}

func TestSignVoteWithoutSignerFails(t *testing.T) {
	ctx := context.Background()
	kc := NewMemoryKeychain()
	_, err := SignVote(ctx, kc, 0, 0, StepPropose, BlockID{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResourceNotAvailable)
}

func TestSignVoteOutsideHeightRangeFails(t *testing.T) {
	ctx := context.Background()
	kc := NewMemoryKeychain()
	_, err := kc.Insert(HeightRange{Start: 100, End: HeightNever}, "password")
	require.NoError(t, err)

	_, err = SignVote(ctx, kc, 0, 0, StepPropose, BlockID{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRoundValidator)
}

func TestVoteValidateRejectsTamperedSignature(t *testing.T) {
	ctx := context.Background()
	kc := NewMemoryKeychain()
	_, err := kc.Insert(HeightRange{Start: 0, End: HeightNever}, "password")
	require.NoError(t, err)

	vote, err := SignVote(ctx, kc, 1, 0, StepPrevote, BlockID{0x01})
	require.NoError(t, err)

	tampered := vote
	tampered.Signature = append([]byte(nil), vote.Signature...)
	tampered.Signature[0] ^= 0xFF

	err = tampered.Validate(kc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVoteValidateRejectsWrongAuthor(t *testing.T) {
	ctx := context.Background()
	kcA := NewMemoryKeychain()
	_, err := kcA.Insert(HeightRange{Start: 0, End: HeightNever}, "a")
	require.NoError(t, err)

	kcB := NewMemoryKeychain()
	validatorB, err := kcB.Insert(HeightRange{Start: 0, End: HeightNever}, "b")
	require.NoError(t, err)

	vote, err := SignVote(ctx, kcA, 1, 0, StepPrevote, BlockID{0x01})
	require.NoError(t, err)

	vote.Validator = validatorB
	err = vote.Validate(kcA)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
