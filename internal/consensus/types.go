package consensus

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
)

// Height is a consensus height, starting at zero.
type Height uint64

// HeightNever is the sentinel value meaning "no height has ever been
// committed". It is the maximum representable Height, matching the
// original reactor's sentinel rather than an Option/pointer type, so
// height arithmetic (committed_height+1, saturating subtraction) keeps the
// exact same overflow behavior it had there.
const HeightNever Height = math.MaxUint64

// Round is a round number within a height.
type Round uint64

// BlockID is an opaque 32-byte content identifier. The reactor never
// inspects or hashes block contents itself; producing a BlockID is the
// caller's responsibility (see pkg/merkle for a helper).
type BlockID [32]byte

// Validator identifies a consensus participant by its secp256k1-derived
// address.
type Validator = common.Address

// HeightRange is an inclusive-exclusive [Start, End) height window used to
// scope a validator key or a stake grant, mirroring the original's
// range-indexed metadata.
type HeightRange struct {
	Start Height
	End   Height
}

// Contains reports whether h falls within r.
func (r HeightRange) Contains(h Height) bool {
	return h >= r.Start && h < r.End
}
