package hodl

import "math/big"

// CurrentPenaltyPercent returns the penalty percent in force after elapsed
// seconds of a commitment. The percent decays linearly from the initial value
// to zero over the commit period, truncating toward zero so the result never
// exceeds the true linear value. Zero elapsed returns the initial percent
// exactly.
func CurrentPenaltyPercent(initialPercent, commitPeriod, elapsed uint64) uint64 {
	if commitPeriod == 0 || elapsed >= commitPeriod {
		return 0
	}
	return initialPercent * (commitPeriod - elapsed) / commitPeriod
}

// PenaltyAmount returns the amount forfeited when withdrawing the balance
// after elapsed seconds. The multiply and divide are fused so rounding error
// is not compounded across the two steps.
func PenaltyAmount(balance *big.Int, initialPercent, commitPeriod, elapsed uint64) *big.Int {
	percent := CurrentPenaltyPercent(initialPercent, commitPeriod, elapsed)
	if percent == 0 || balance == nil || balance.Sign() <= 0 {
		return big.NewInt(0)
	}
	return mulDiv(balance, new(big.Int).SetUint64(percent), oneHundred)
}
