package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testValidator(b byte) Validator {
	var v Validator
	v[19] = b
	return v
}

func TestStakePoolGrantAndSlash(t *testing.T) {
	p := NewStakePool("node-a")
	v := testValidator(1)

	p.Grant(v, 100)
	assert.Equal(t, int64(100), p.Stake(v))
	assert.Contains(t, p.Members(), v)

	p.Slash(v, 30)
	assert.Equal(t, int64(70), p.Stake(v))
}

func TestStakePoolEvictRemovesMembershipNotHistory(t *testing.T) {
	p := NewStakePool("node-a")
	v := testValidator(1)

	p.Grant(v, 50)
	p.Evict(v)

	assert.NotContains(t, p.Members(), v)
	assert.Equal(t, int64(50), p.Stake(v), "stake history survives eviction")
}

func TestStakePoolTotalStakedOnlyCountsMembers(t *testing.T) {
	p := NewStakePool("node-a")
	a, b := testValidator(1), testValidator(2)

	p.Grant(a, 10)
	p.Grant(b, 20)
	p.Evict(b)

	assert.Equal(t, int64(10), p.TotalStaked())
}

func TestStakePoolMergeIsCommutative(t *testing.T) {
	v := testValidator(1)

	left := NewStakePool("node-a")
	right := NewStakePool("node-b")
	left.Grant(v, 40)
	right.Grant(v, 25)

	require.NoError(t, left.Merge(right))

	other := NewStakePool("node-b")
	other.Grant(v, 25)
	another := NewStakePool("node-a")
	another.Grant(v, 40)
	require.NoError(t, other.Merge(another))

	assert.Equal(t, left.Stake(v), other.Stake(v))
	assert.Equal(t, int64(65), left.Stake(v))
}
