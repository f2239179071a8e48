package tests

import (
	"context"
	"fmt"
	"testing"

	"github.com/rechain/rechain/internal/consensus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passwordFor(i int) string {
	return fmt.Sprintf("validator-password-%d", i)
}

func TestFullSystemIntegration(t *testing.T) {
	t.Run("precommit threshold cascades straight to commit", func(t *testing.T) {
		ctx := context.Background()
		metadata := consensus.NewMetadata()
		moderator := consensus.NewFakeModerator(consensus.DefaultGenesis)
		cfg := consensus.DefaultConfig()

		validators := make([]consensus.Validator, 4)
		keychains := make([]*consensus.MemoryKeychain, 4)
		for i := range validators {
			kc := consensus.NewMemoryKeychain()
			v, err := kc.Insert(consensus.HeightRange{Start: 0, End: consensus.HeightNever}, passwordFor(i))
			require.NoError(t, err)
			metadata.AddValidator(0, uint64(consensus.HeightNever), v)
			validators[i] = v
			keychains[i] = kc
		}

		blockID := consensus.BlockID{0xAB}

		// validators[1] and [2] are already on record (e.g. relayed earlier)
		// as having reached Precommit for height 0, round 0.
		metadata.UpgradeValidatorStep(0, 0, validators[1], consensus.StepPrecommit)
		metadata.UpgradeValidatorStep(0, 0, validators[2], consensus.StepPrecommit)

		reactor0 := consensus.NewReactor(cfg, metadata, keychains[0], moderator)

		// validators[3]'s own Precommit vote arrives and tips the threshold
		// (3 of 4 validators, strictly greater than 4*2/3 = 2) to Consensus.
		finalVote, err := consensus.SignVote(ctx, keychains[3], 0, 0, consensus.StepPrecommit, blockID)
		require.NoError(t, err)

		require.NoError(t, reactor0.ReceiveVote(ctx, finalVote))

		assert.Equal(t, consensus.Height(0), metadata.CommittedHeight())

		ev, ok := moderator.TakeEvent(consensus.EventCommit)
		require.True(t, ok, "reaching the precommit threshold should emit EventCommit")
		assert.Equal(t, blockID, ev.BlockID)
		assert.Equal(t, consensus.Height(0), ev.Height)
	})

	t.Run("fewer than four validators can never reach consensus", func(t *testing.T) {
		ctx := context.Background()
		metadata := consensus.NewMetadata()
		moderator := consensus.NewFakeModerator(consensus.DefaultGenesis)
		cfg := consensus.DefaultConfig()

		kc := consensus.NewMemoryKeychain()
		validator, err := kc.Insert(consensus.HeightRange{Start: 0, End: consensus.HeightNever}, "only-validator")
		require.NoError(t, err)
		metadata.AddValidator(0, uint64(consensus.HeightNever), validator)

		reactor := consensus.NewReactor(cfg, metadata, kc, moderator)
		require.NoError(t, reactor.Propose(ctx, consensus.BlockID{0x01}))

		assert.Equal(t, consensus.HeightNever, metadata.CommittedHeight())
		assert.Equal(t, consensus.Reject, consensus.EvaluateThreshold(metadata.ValidatorsAtHeightCount(0), 1))
	})

	t.Run("a future-round vote is requeued rather than applied", func(t *testing.T) {
		ctx := context.Background()
		metadata := consensus.NewMetadata()
		moderator := consensus.NewFakeModerator(consensus.DefaultGenesis)
		cfg := consensus.DefaultConfig()

		kcs := make([]*consensus.MemoryKeychain, 4)
		for i := range kcs {
			kc := consensus.NewMemoryKeychain()
			v, err := kc.Insert(consensus.HeightRange{Start: 0, End: consensus.HeightNever}, passwordFor(i))
			require.NoError(t, err)
			metadata.AddValidator(0, uint64(consensus.HeightNever), v)
			kcs[i] = kc
		}
		reactor0 := consensus.NewReactor(cfg, metadata, kcs[0], moderator)

		futureVote, err := consensus.SignVote(ctx, kcs[1], 0, 5, consensus.StepPrevote, consensus.BlockID{0x02})
		require.NoError(t, err)

		require.NoError(t, reactor0.ReceiveVote(ctx, futureVote))

		assert.Equal(t, consensus.Step(0), metadata.ValidatorStep(0, 5, futureVote.Validator),
			"a future round's vote must not be applied yet")

		msg, err := moderator.InboundBlocking(ctx)
		require.NoError(t, err)
		require.NotNil(t, msg.Notification)
		assert.Equal(t, consensus.NotifyVote, msg.Notification.Kind)
		assert.Equal(t, futureVote, msg.Notification.Vote)
	})
}

func TestStakePoolIntegration(t *testing.T) {
	t.Run("merge reconciles two replicas", func(t *testing.T) {
		kc := consensus.NewMemoryKeychain()
		v, err := kc.Insert(consensus.HeightRange{Start: 0, End: consensus.HeightNever}, "staker")
		require.NoError(t, err)

		a := consensus.NewStakePool("node-a")
		b := consensus.NewStakePool("node-b")

		a.Grant(v, 100)
		b.Grant(v, 50)

		require.NoError(t, a.Merge(b))

		assert.Equal(t, int64(150), a.Stake(v))
		assert.Contains(t, a.Members(), v)
	})
}
