package hodl

import "errors"

var (
	// ErrInvalidCommitment is returned when a commit period or penalty percent
	// lies outside the configured bounds, or when a top-up would weaken an
	// unexpired commitment.
	ErrInvalidCommitment = errors.New("hodl engine: invalid commitment")
	// ErrEmptyDeposit is returned when the amount actually received by the
	// pool vault is zero.
	ErrEmptyDeposit = errors.New("hodl engine: deposit amount received is zero")
	// ErrNoSuchDeposit is returned when an operation references a destroyed or
	// never-created deposit.
	ErrNoSuchDeposit = errors.New("hodl engine: deposit not found")
	// ErrNotOwner is returned when an account other than the current owner
	// attempts to withdraw, top up or transfer a deposit.
	ErrNotOwner = errors.New("hodl engine: caller does not own deposit")
	// ErrStillPenalized is returned by the bonus withdrawal path while the
	// current penalty percent is nonzero.
	ErrStillPenalized = errors.New("hodl engine: commit period not elapsed")

	errNilState    = errors.New("hodl engine: state not configured")
	errNilAdapter  = errors.New("hodl engine: transfer adapter not configured")
	errAssetName   = errors.New("hodl engine: asset required")
	errOwnerUnset  = errors.New("hodl engine: owner required")
	errInvalidAmnt = errors.New("hodl engine: amount must be positive")
)
