package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepOrdering(t *testing.T) {
	assert.True(t, StepNewRound < StepPropose)
	assert.True(t, StepPropose < StepPrevote)
	assert.True(t, StepPrevote < StepPrecommit)
	assert.True(t, StepPrecommit < StepCommit)
}

func TestStepIncrement(t *testing.T) {
	cases := []struct {
		from Step
		want Step
		ok   bool
	}{
		{StepNewRound, StepPropose, true},
		{StepPropose, StepPrevote, true},
		{StepPrevote, StepPrecommit, true},
		{StepPrecommit, StepCommit, true},
		{StepCommit, StepCommit, false},
	}
	for _, c := range cases {
		got, ok := c.from.Increment()
		assert.Equal(t, c.want, got, "Increment(%s)", c.from)
		assert.Equal(t, c.ok, ok, "Increment(%s) ok", c.from)
	}
}

func TestStepUpto(t *testing.T) {
	assert.Equal(t, []Step{StepNewRound, StepPropose, StepPrevote, StepPrecommit, StepCommit}, StepNewRound.Upto())
	assert.Equal(t, []Step{StepPrecommit, StepCommit}, StepPrecommit.Upto())
	assert.Equal(t, []Step{StepCommit}, StepCommit.Upto())
}

func TestStepPredicates(t *testing.T) {
	assert.True(t, StepNewRound.IsInitial())
	assert.False(t, StepPropose.IsInitial())

	assert.True(t, StepPropose.IsPropose())
	assert.False(t, StepPrevote.IsPropose())

	assert.True(t, StepPrecommit.IsPrecommit())
	assert.False(t, StepPrevote.IsPrecommit())

	assert.True(t, StepCommit.IsCommit())
	assert.False(t, StepPrecommit.IsCommit())
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "Propose", StepPropose.String())
	assert.Contains(t, Step(200).String(), "Step(200)")
}
