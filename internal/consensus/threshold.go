package consensus

// Verdict is the outcome of evaluating collected approvals against the
// current validator set.
type Verdict uint8

const (
	Inconclusive Verdict = iota
	Consensus
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Inconclusive:
		return "Inconclusive"
	case Consensus:
		return "Consensus"
	case Reject:
		return "Reject"
	default:
		return "Unknown"
	}
}

// IsBFT reports whether validators meets the minimum Byzantine-fault-
// tolerant floor of four validators.
func (v Verdict) IsConsensus() bool { return v == Consensus }

// minValidators is the smallest validator set size that can tolerate any
// Byzantine fault under the 2f+1 rule; below it every round is rejected
// outright regardless of approval count.
const minValidators = 4

// EvaluateThreshold applies the BFT supermajority rule: with fewer than
// minValidators validators the round is rejected outright; otherwise
// approvals strictly greater than two thirds of validators (integer
// division, truncating) reaches Consensus, anything else stays
// Inconclusive pending more votes.
func EvaluateThreshold(validators, approvals int) Verdict {
	if validators < minValidators {
		return Reject
	}
	if approvals > (validators*2)/3 {
		return Consensus
	}
	return Inconclusive
}
