package hodl

import "math/big"

var (
	oneHundred = big.NewInt(100)
	twoHundred = big.NewInt(200)
)

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// mulDiv computes a*b/den at full precision, truncating toward zero. The
// product is never truncated before the division, so proportional shares lose
// at most one unit to rounding.
func mulDiv(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// splitHalf divides an amount exactly in two. The first half truncates; the
// second receives any odd remainder so the parts always sum to the input.
func splitHalf(amount *big.Int) (*big.Int, *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	first := new(big.Int).Rsh(amount, 1)
	second := new(big.Int).Sub(amount, first)
	return first, second
}
