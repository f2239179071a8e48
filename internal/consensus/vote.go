package consensus

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Vote is a validator's signed statement that it has reached a given step
// for a given block at a given height/round.
type Vote struct {
	BlockID   BlockID
	Height    Height
	Round     Round
	Step      Step
	Validator Validator
	Signature []byte
}

// Digest computes the signing digest for a vote: the big-endian height and
// round, the block id, and the step byte, hashed with SHA-256. The exact
// field order and width matches the original wire-free digest so that a
// signature produced against one implementation validates against another.
func Digest(height Height, round Round, blockID BlockID, step Step) [32]byte {
	h := sha256.New()
	var buf [8]byte

	binary.BigEndian.PutUint64(buf[:], uint64(height))
	h.Write(buf[:])

	binary.BigEndian.PutUint64(buf[:], uint64(round))
	h.Write(buf[:])

	h.Write(blockID[:])
	h.Write([]byte{byte(step)})

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (v Vote) digest() [32]byte {
	return Digest(v.Height, v.Round, v.BlockID, v.Step)
}

// SignVote produces a Vote for the local signer of keychain at height,
// signing over (blockID, height, round, step). It returns
// ErrResourceNotAvailable if keychain has no local signer, and
// ErrNotRoundValidator if the local signer is not a validator at height.
func SignVote(ctx context.Context, kc Keychain, height Height, round Round, step Step, blockID BlockID) (Vote, error) {
	signer, ok := kc.Signer(ctx)
	if !ok {
		return Vote{}, fmt.Errorf("sign vote: %w", ErrResourceNotAvailable)
	}
	if !kc.IsValidatorForHeight(ctx, height) {
		return Vote{}, fmt.Errorf("sign vote: %w", ErrNotRoundValidator)
	}

	v := Vote{
		BlockID:   blockID,
		Height:    height,
		Round:     round,
		Step:      step,
		Validator: signer,
	}
	sig, err := kc.Sign(ctx, height, v.digest())
	if err != nil {
		return Vote{}, fmt.Errorf("sign vote: %w", err)
	}
	v.Signature = sig
	return v, nil
}

// Validate checks that v.Signature is a valid signature by v.Validator over
// v's digest, according to kc.
func (v Vote) Validate(kc Keychain) error {
	if err := kc.Verify(v.Signature, v.Validator, v.digest()); err != nil {
		return fmt.Errorf("validate vote: %w: %w", ErrInvalidSignature, err)
	}
	return nil
}
