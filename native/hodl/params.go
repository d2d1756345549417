package hodl

import "fmt"

const (
	// MaxInitialPenaltyPercent caps the starting penalty of any commitment.
	MaxInitialPenaltyPercent uint64 = 100
	// DefaultMinCommitPeriod mirrors the shortest commitment accepted when the
	// operator does not override it.
	DefaultMinCommitPeriod uint64 = 10
	// DefaultMaxCommitPeriod is the hard ceiling on commitments (four years).
	DefaultMaxCommitPeriod uint64 = 4 * 365 * 24 * 60 * 60
)

// Params bound the commitments the engine accepts at the deposit boundary.
type Params struct {
	MinInitialPenaltyPercent uint64
	MinCommitPeriod          uint64
	MaxCommitPeriod          uint64
}

// DefaultParams returns the commitment bounds used when no configuration is
// supplied.
func DefaultParams() Params {
	return Params{
		MinInitialPenaltyPercent: 1,
		MinCommitPeriod:          DefaultMinCommitPeriod,
		MaxCommitPeriod:          DefaultMaxCommitPeriod,
	}
}

// Validate reports whether the bounds themselves are coherent.
func (p Params) Validate() error {
	if p.MinInitialPenaltyPercent == 0 || p.MinInitialPenaltyPercent > MaxInitialPenaltyPercent {
		return fmt.Errorf("hodl params: min initial penalty percent must lie in [1,%d]", MaxInitialPenaltyPercent)
	}
	if p.MinCommitPeriod == 0 {
		return fmt.Errorf("hodl params: min commit period must be positive")
	}
	if p.MaxCommitPeriod < p.MinCommitPeriod {
		return fmt.Errorf("hodl params: max commit period below minimum")
	}
	return nil
}

// CheckCommitment validates a requested commitment against the bounds.
func (p Params) CheckCommitment(initialPenaltyPercent, commitPeriod uint64) error {
	if initialPenaltyPercent < p.MinInitialPenaltyPercent || initialPenaltyPercent > MaxInitialPenaltyPercent {
		return fmt.Errorf("%w: initial penalty percent %d outside [%d,%d]",
			ErrInvalidCommitment, initialPenaltyPercent, p.MinInitialPenaltyPercent, MaxInitialPenaltyPercent)
	}
	if commitPeriod < p.MinCommitPeriod || commitPeriod > p.MaxCommitPeriod {
		return fmt.Errorf("%w: commit period %ds outside [%ds,%ds]",
			ErrInvalidCommitment, commitPeriod, p.MinCommitPeriod, p.MaxCommitPeriod)
	}
	return nil
}
