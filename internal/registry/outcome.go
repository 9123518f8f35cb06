package registry

// Outcome classifies a single deployment attempt.
type Outcome int

const (
	// OutcomeSuccess means the contract was deployed.
	OutcomeSuccess Outcome = iota
	// OutcomeRetryable means the credential ran out of funds on that network.
	OutcomeRetryable
	// OutcomeFatal is any other deploy error.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "insufficient_funds"
	case OutcomeFatal:
		return "failed"
	default:
		return "unknown"
	}
}

// Decision is what happens to a pair in the next round.
type Decision int

const (
	Keep Decision = iota
	Retire
)

func (d Decision) String() string {
	if d == Keep {
		return "keep"
	}
	return "retire"
}

// RecordOutcome maps an attempt outcome to the pair's fate in the next round.
// Only a success keeps the pair; insufficient funds is terminal for that pair.
func RecordOutcome(_ Pair, o Outcome) Decision {
	if o == OutcomeSuccess {
		return Keep
	}
	return Retire
}
