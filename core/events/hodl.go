package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"hodlpool/crypto"
)

const (
	// TypeHodlDeposited captures a fresh commitment entering a pool.
	TypeHodlDeposited = "hodl.deposited"
	// TypeHodlToppedUp captures a merge into an existing commitment.
	TypeHodlToppedUp = "hodl.toppedUp"
	// TypeHodlWithdrawnEarly captures a penalized withdrawal.
	TypeHodlWithdrawnEarly = "hodl.withdrawnEarly"
	// TypeHodlWithdrawnMature captures a bonus-eligible withdrawal.
	TypeHodlWithdrawnMature = "hodl.withdrawnMature"
	// TypeHodlDepositTransferred captures a change of deposit ownership.
	TypeHodlDepositTransferred = "hodl.depositTransferred"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.HodlPrefix, addr[:]).String()
}

func formatID(id [32]byte) string {
	return "0x" + hex.EncodeToString(id[:])
}

// HodlDeposited is emitted when a fresh deposit record is created.
type HodlDeposited struct {
	ID           [32]byte
	Owner        [20]byte
	Asset        string
	Credited     *big.Int
	CommitPeriod uint64
	Penalty      uint64
}

// EventType satisfies the Event interface.
func (HodlDeposited) EventType() string { return TypeHodlDeposited }

// Attributes renders the payload for structured logging.
func (e HodlDeposited) Attributes() map[string]string {
	return map[string]string{
		"id":           formatID(e.ID),
		"owner":        formatAddress(e.Owner),
		"asset":        e.Asset,
		"credited":     formatAmount(e.Credited),
		"commitPeriod": uitoa(e.CommitPeriod),
		"penalty":      uitoa(e.Penalty),
	}
}

// HodlToppedUp is emitted when an existing deposit is merged with new funds.
type HodlToppedUp struct {
	ID         [32]byte
	Owner      [20]byte
	Asset      string
	Credited   *big.Int
	NewBalance *big.Int
}

func (HodlToppedUp) EventType() string { return TypeHodlToppedUp }

func (e HodlToppedUp) Attributes() map[string]string {
	return map[string]string{
		"id":         formatID(e.ID),
		"owner":      formatAddress(e.Owner),
		"asset":      e.Asset,
		"credited":   formatAmount(e.Credited),
		"newBalance": formatAmount(e.NewBalance),
	}
}

// HodlWithdrawn is emitted for both withdrawal paths; Mature distinguishes
// them.
type HodlWithdrawn struct {
	ID          [32]byte
	Owner       [20]byte
	Asset       string
	Payout      *big.Int
	Penalty     *big.Int
	HoldBonus   *big.Int
	CommitBonus *big.Int
	Mature      bool
}

func (e HodlWithdrawn) EventType() string {
	if e.Mature {
		return TypeHodlWithdrawnMature
	}
	return TypeHodlWithdrawnEarly
}

func (e HodlWithdrawn) Attributes() map[string]string {
	return map[string]string{
		"id":          formatID(e.ID),
		"owner":       formatAddress(e.Owner),
		"asset":       e.Asset,
		"payout":      formatAmount(e.Payout),
		"penalty":     formatAmount(e.Penalty),
		"holdBonus":   formatAmount(e.HoldBonus),
		"commitBonus": formatAmount(e.CommitBonus),
	}
}

// HodlDepositTransferred is emitted when deposit ownership changes hands.
type HodlDepositTransferred struct {
	ID       [32]byte
	Previous [20]byte
	NewOwner [20]byte
	Asset    string
}

func (HodlDepositTransferred) EventType() string { return TypeHodlDepositTransferred }

func (e HodlDepositTransferred) Attributes() map[string]string {
	return map[string]string{
		"id":       formatID(e.ID),
		"previous": formatAddress(e.Previous),
		"newOwner": formatAddress(e.NewOwner),
		"asset":    e.Asset,
	}
}

func uitoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
