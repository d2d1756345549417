package hodl

import "math/big"

// CommitPoints returns the commit-point grant for a commitment:
// balance * commitPeriod * initialPercent / 200, computed at full precision
// with a single truncating division. The grant is fixed at deposit time and
// does not decay with the penalty.
func CommitPoints(balance *big.Int, commitPeriod, initialPercent uint64) *big.Int {
	if balance == nil || balance.Sign() <= 0 || commitPeriod == 0 || initialPercent == 0 {
		return big.NewInt(0)
	}
	weight := new(big.Int).SetUint64(commitPeriod)
	weight.Mul(weight, new(big.Int).SetUint64(initialPercent))
	return mulDiv(balance, weight, twoHundred)
}

// HoldPoints returns balance * (now - since). Hold points accrue immediately
// and continuously from deposit time, before the commit period matures.
func HoldPoints(balance *big.Int, since, now uint64) *big.Int {
	if balance == nil || balance.Sign() <= 0 || now <= since {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(balance, new(big.Int).SetUint64(now-since))
}

// carryOver snapshots the points a deposit has accrued up to the merge
// instant. The merged deposit stores the hold snapshot as its baseline and
// adds a fresh commit grant for the full merged balance under the new terms,
// so future accrual reproduces the prior points plus fresh accrual exactly.
// The only rounding in the whole scheme is the truncating /200 inside
// CommitPoints, bounding merge error below one point-unit per merge.
type carryOver struct {
	holdPoints   *big.Int
	commitPoints *big.Int
}

func snapshotCarryOver(d *Deposit, now uint64) carryOver {
	return carryOver{
		holdPoints:   d.HoldPointsAt(now),
		commitPoints: cloneBigInt(d.CommitPoints),
	}
}
