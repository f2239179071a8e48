package consensus

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Reactor drives a single validator's participation in consensus. It owns
// no transport and no timers: every suspension point is a call into its
// Moderator, and every notion of "now" comes from Moderator.Now.
type Reactor struct {
	config    Config
	metadata  *Metadata
	keychain  Keychain
	moderator Moderator

	shouldQuit bool
}

// NewReactor builds a Reactor from its external dependencies.
func NewReactor(config Config, metadata *Metadata, keychain Keychain, moderator Moderator) *Reactor {
	return &Reactor{config: config, metadata: metadata, keychain: keychain, moderator: moderator}
}

// Height returns the height currently being decided: one past the last
// committed height, or zero if nothing has committed yet (the wraparound
// of HeightNever+1).
func (r *Reactor) Height() Height {
	return r.metadata.CommittedHeight() + 1
}

// Round computes the current round purely from wall-clock time: elapsed
// time since genesis, divided into ConsensusInterval slices, with the
// rounds already consumed by prior commits subtracted off. The
// subtraction saturates at zero rather than wrapping, reproducing the
// original's "free round" quirk: when no round has ever been consumed
// (committedRounds == 0) the saturating subtraction of 1 leaves the
// subtrahend at 0 rather than going negative, so the very first round
// window is effectively granted an extra free slice of wall-clock time.
func (r *Reactor) Round(now time.Time) Round {
	if now.Before(r.config.Genesis) {
		return 0
	}
	elapsed := now.Sub(r.config.Genesis)
	slices := Round(elapsed / r.config.ConsensusInterval)

	committedRounds := r.metadata.CommittedRounds()
	consumed := committedRounds
	if consumed > 0 {
		consumed--
	}

	if slices < Round(consumed) {
		return 0
	}
	return slices - Round(consumed)
}

// Leader returns the validator designated to propose in round, selected by
// round-robin rotation over the canonically address-sorted validator set
// at the current height: committedRounds+round modulo the validator
// count. Returns ErrValidatorNotFound if the height has no validators.
func (r *Reactor) Leader(round Round) (Validator, error) {
	height := r.Height()
	validators := r.metadata.ValidatorsAtHeight(height)
	if len(validators) == 0 {
		return Validator{}, fmt.Errorf("leader at height %d: %w", height, ErrValidatorNotFound)
	}
	idx := (r.metadata.CommittedRounds() + uint64(round)) % uint64(len(validators))
	return validators[idx], nil
}

// Commit finalizes height as decided by round with block blockID, running
// Metadata's garbage collection and advancing committedRounds. It emits
// an EventCommit to the Moderator on success.
func (r *Reactor) Commit(ctx context.Context, height Height, round Round, blockID BlockID) error {
	if err := r.metadata.Commit(height, round); err != nil {
		return fmt.Errorf("reactor commit: %w", err)
	}
	Send(ctx, r.moderator, Message{Event: &Event{Kind: EventCommit, Height: height, BlockID: blockID}}, r.config.Timeout)
	return nil
}

// UpgradeStep advances validator's recorded step at height/round to step,
// returning whether it actually advanced.
func (r *Reactor) UpgradeStep(height Height, round Round, validator Validator, step Step) bool {
	return r.metadata.UpgradeValidatorStep(height, round, validator, step)
}

// Propose emits a Propose-step vote for the current height/round if the
// local signer is this round's leader and no block has been proposed yet.
// It is a no-op, not an error, when the local node isn't the leader or has
// no local identity — matching the original's "propose only acts when it
// is our turn" contract.
func (r *Reactor) Propose(ctx context.Context, blockID BlockID) error {
	signer, ok := r.keychain.Signer(ctx)
	if !ok {
		return nil
	}

	height := r.Height()
	round := r.Round(r.moderator.Now())

	leader, err := r.Leader(round)
	if err != nil {
		return fmt.Errorf("propose: %w", err)
	}
	if leader != signer {
		return nil
	}
	if _, proposed := r.metadata.AuthorizedPropose(height); proposed {
		return nil
	}

	r.metadata.AuthorizeBlockPropose(height, blockID)

	vote, err := SignVote(ctx, r.keychain, height, round, StepPropose, blockID)
	if err != nil {
		return fmt.Errorf("propose: %w", err)
	}
	r.metadata.UpgradeValidatorStep(height, round, signer, StepPropose)
	Send(ctx, r.moderator, Message{Event: &Event{Kind: EventBroadcast, Vote: vote}}, r.config.Timeout)
	return nil
}

// ReceiveVote is the reactor's central state-machine transition: it
// validates vote against the current Metadata/Keychain state, upgrades
// the sender's recorded step, evaluates the BFT threshold for that step,
// and cascades the step upgrade with a re-broadcast vote when threshold
// is reached.
//
// Votes from the local signer are dropped silently (we already recorded
// our own step when we signed it). Votes for a past height/round are
// dropped as stale. Votes for a future round are requeued through the
// Moderator so they are re-delivered once that round arrives.
func (r *Reactor) ReceiveVote(ctx context.Context, vote Vote) error {
	signer, hasSigner := r.keychain.Signer(ctx)
	if hasSigner && vote.Validator == signer {
		return nil
	}

	height := r.Height()
	if vote.Height < height {
		return nil
	}
	if vote.Height > height {
		Requeue(ctx, r.moderator, Message{Notification: &Notification{Kind: NotifyVote, Vote: vote}}, r.config.Timeout)
		return nil
	}

	currentRound := r.Round(r.moderator.Now())
	if vote.Round > currentRound {
		Requeue(ctx, r.moderator, Message{Notification: &Notification{Kind: NotifyVote, Vote: vote}}, r.config.Timeout)
		return nil
	}
	if vote.Round < currentRound {
		return nil
	}

	if err := r.metadata.Validate(r.keychain, vote.Height, vote.Validator, vote.Signature, vote.digest()); err != nil {
		Send(ctx, r.moderator, Message{Event: &Event{Kind: EventBadVote, Vote: vote, Err: err}}, r.config.Timeout)
		return fmt.Errorf("receive vote: %w", err)
	}

	if vote.Step.IsPropose() {
		leader, err := r.Leader(vote.Round)
		if err != nil || vote.Validator != leader {
			Send(ctx, r.moderator, Message{Event: &Event{Kind: EventBadVote, Vote: vote, Err: ErrNotRoundValidator}}, r.config.Timeout)
			return nil
		}

		if !r.metadata.IsBlockAuthorized(vote.Height, vote.BlockID) {
			Requeue(ctx, r.moderator, Message{Notification: &Notification{Kind: NotifyVote, Vote: vote}}, r.config.Timeout)
			return nil
		}

		r.metadata.UpgradeValidatorStep(vote.Height, vote.Round, vote.Validator, vote.Step)

		// Block already authorized: bypass the generic threshold count
		// and go straight to Prevote.
		return r.upgradeStep(ctx, vote.Height, vote.Round, vote.BlockID, StepPrevote)
	}

	current := r.metadata.ValidatorStep(vote.Height, vote.Round, vote.Validator)
	if vote.Step <= current {
		return nil
	}

	r.metadata.UpgradeValidatorStep(vote.Height, vote.Round, vote.Validator, vote.Step)

	validators := r.metadata.ValidatorsAtHeightCount(vote.Height)
	approvals := r.metadata.StepCount(vote.Height, vote.Round, vote.Step)
	verdict := EvaluateThreshold(validators, approvals)

	switch verdict {
	case Reject:
		return nil
	case Inconclusive:
		return nil
	case Consensus:
		next, ok := vote.Step.Increment()
		if !ok {
			return nil
		}
		return r.upgradeStep(ctx, vote.Height, vote.Round, vote.BlockID, next)
	}
	return nil
}

// upgradeStep advances the local signer's recorded step at height/round to
// step, signing and broadcasting the upgraded vote, and carries through to
// Commit when step is Commit and a block is already authorized. It is a
// no-op when the local signer has no identity, is not a validator for
// height, or has already recorded step or higher.
func (r *Reactor) upgradeStep(ctx context.Context, height Height, round Round, blockID BlockID, step Step) error {
	signer, ok := r.keychain.Signer(ctx)
	if !ok {
		return nil
	}
	if !r.keychain.IsValidatorForHeight(ctx, height) {
		return nil
	}

	if !r.metadata.UpgradeValidatorStep(height, round, signer, step) {
		return nil
	}

	upgraded, err := SignVote(ctx, r.keychain, height, round, step, blockID)
	if err != nil {
		return fmt.Errorf("upgrade step: %w", err)
	}
	Send(ctx, r.moderator, Message{Event: &Event{Kind: EventBroadcast, Vote: upgraded}}, r.config.Timeout)

	if step.IsCommit() {
		r.metadata.AuthorizeBlock(height, blockID)
		return r.Commit(ctx, height, round, blockID)
	}
	return nil
}

// ReceiveNotification dispatches an inbound Notification.
func (r *Reactor) ReceiveNotification(ctx context.Context, n Notification) error {
	switch n.Kind {
	case NotifyKill:
		r.shouldQuit = true
		return nil
	case NotifyNewValidator:
		r.metadata.AddValidator(r.Height(), n.Validity, n.Validator)
		return nil
	case NotifyVote:
		return r.ReceiveVote(ctx, n.Vote)
	case NotifyBlockAuthorized:
		r.metadata.AuthorizeBlock(n.Height, n.BlockID)
		return nil
	case NotifyBlockProposeAuthorized:
		r.metadata.AuthorizeBlockPropose(n.Height, n.BlockID)
		return nil
	default:
		return nil
	}
}

// ReceiveRequest answers a Request with the matching Response and sends it
// back through the Moderator.
func (r *Reactor) ReceiveRequest(ctx context.Context, req Request) error {
	resp := Response{ID: req.ID, Kind: req.Kind}

	switch req.Kind {
	case RequestIdentity:
		signer, ok := r.keychain.Signer(ctx)
		if !ok {
			resp.Err = ErrResourceNotAvailable
		}
		resp.Validator = signer
	case RequestInitialize:
		resp.Height = r.Height()
		if signer, ok := r.keychain.Signer(ctx); ok && r.keychain.IsValidatorForHeight(ctx, req.Start) {
			r.metadata.AddValidator(req.Start, req.Validity, signer)
			resp.Initialized = true
		}
	case RequestRound:
		height := r.Height()
		round := r.Round(r.moderator.Now())
		resp.Height = height
		resp.Round = round
		if leader, err := r.Leader(round); err == nil {
			resp.Leader = leader
		}
		if signer, ok := r.keychain.Signer(ctx); ok {
			resp.Step = r.metadata.ValidatorStep(height, round, signer)
		}
	case RequestCommit:
		if err := r.metadata.Commit(req.Height, req.Round); err != nil {
			resp.Err = err
		} else {
			resp.Committed = true
		}
		resp.Height = r.metadata.CommittedHeight()
	default:
		resp.Err = ErrResourceNotAvailable
	}

	Send(ctx, r.moderator, Message{Response: &resp}, r.config.Timeout)
	return nil
}

// Heartbeat drains one full pass of the inbound queue, dispatching every
// message it finds, then proposes if the local signer leads the current
// round. It is idle (a no-op beyond emitting EventIdle) when the local
// Keychain has no identity, since an observer-only node has nothing to
// vote or propose with.
func (r *Reactor) Heartbeat(ctx context.Context, pendingBlock BlockID) error {
	if _, ok := r.keychain.Signer(ctx); !ok {
		Send(ctx, r.moderator, Message{Event: &Event{Kind: EventIdle}}, r.config.Timeout)
		return nil
	}

	for !r.shouldQuit {
		msg, ok, err := r.moderator.Inbound(ctx)
		if err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
		if !ok {
			break
		}
		if err := r.dispatch(ctx, msg); err != nil {
			log.Printf("consensus: dispatch failed: %v", err)
		}
	}

	if r.shouldQuit {
		return nil
	}
	return r.Propose(ctx, pendingBlock)
}

func (r *Reactor) dispatch(ctx context.Context, msg Message) error {
	switch {
	case msg.Notification != nil:
		return r.ReceiveNotification(ctx, *msg.Notification)
	case msg.Request != nil:
		return r.ReceiveRequest(ctx, *msg.Request)
	default:
		return nil
	}
}

