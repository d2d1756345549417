package hodl

import (
	"math/big"
)

// DepositID is the opaque identifier of a single commitment.
type DepositID [32]byte

// Deposit captures one commitment held in a pool. Balance, terms and the
// points baseline mutate only on a top-up merge; a withdrawal destroys the
// record outright.
type Deposit struct {
	ID    DepositID
	Owner [20]byte
	Asset string
	// Balance is the amount credited to the deposit, net of any transfer-fee
	// losses measured on the way in.
	Balance *big.Int
	// Time is the unix timestamp of the last deposit action affecting this
	// record. It resets on merge.
	Time                  uint64
	InitialPenaltyPercent uint64
	CommitPeriod          uint64
	// PrevHoldPoints is the hold-point total accrued before the last merge.
	// Zero for a fresh deposit.
	PrevHoldPoints *big.Int
	// CommitPoints is the running commit-point total, fixed between merges.
	CommitPoints *big.Int
}

// Clone returns a deep copy so callers can mutate safely.
func (d *Deposit) Clone() *Deposit {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Balance = cloneBigInt(d.Balance)
	clone.PrevHoldPoints = cloneBigInt(d.PrevHoldPoints)
	clone.CommitPoints = cloneBigInt(d.CommitPoints)
	return &clone
}

func (d *Deposit) normalize() {
	if d.Balance == nil {
		d.Balance = big.NewInt(0)
	}
	if d.PrevHoldPoints == nil {
		d.PrevHoldPoints = big.NewInt(0)
	}
	if d.CommitPoints == nil {
		d.CommitPoints = big.NewInt(0)
	}
}

// Elapsed returns the seconds since the deposit's last reset, floored at zero.
func (d *Deposit) Elapsed(now uint64) uint64 {
	if now <= d.Time {
		return 0
	}
	return now - d.Time
}

// TimeLeft returns the seconds remaining until the commitment matures.
func (d *Deposit) TimeLeft(now uint64) uint64 {
	elapsed := d.Elapsed(now)
	if elapsed >= d.CommitPeriod {
		return 0
	}
	return d.CommitPeriod - elapsed
}

// CurrentPenaltyPercent returns the decayed penalty percent at now.
func (d *Deposit) CurrentPenaltyPercent(now uint64) uint64 {
	return CurrentPenaltyPercent(d.InitialPenaltyPercent, d.CommitPeriod, d.Elapsed(now))
}

// PenaltyAt returns the amount forfeited if the deposit is withdrawn at now.
func (d *Deposit) PenaltyAt(now uint64) *big.Int {
	return PenaltyAmount(d.Balance, d.InitialPenaltyPercent, d.CommitPeriod, d.Elapsed(now))
}

// HoldPointsAt returns the deposit's hold points at now: the pre-merge
// baseline plus balance-seconds accrued since the last reset.
func (d *Deposit) HoldPointsAt(now uint64) *big.Int {
	points := cloneBigInt(d.PrevHoldPoints)
	return points.Add(points, HoldPoints(d.Balance, d.Time, now))
}

// Pool aggregates the per-asset ledger. Hold-point totals are tracked
// incrementally: AccumHoldPoints holds the total as of LastUpdateTime and the
// total accrues at DepositsSum points per second, so folding before every
// mutation keeps the aggregate equal to the exact sum over live deposits.
type Pool struct {
	Asset             string
	DepositsSum       *big.Int
	HoldBonusesSum    *big.Int
	CommitBonusesSum  *big.Int
	TotalCommitPoints *big.Int
	AccumHoldPoints   *big.Int
	LastUpdateTime    uint64
}

func newPool(asset string, now uint64) *Pool {
	return &Pool{
		Asset:             asset,
		DepositsSum:       big.NewInt(0),
		HoldBonusesSum:    big.NewInt(0),
		CommitBonusesSum:  big.NewInt(0),
		TotalCommitPoints: big.NewInt(0),
		AccumHoldPoints:   big.NewInt(0),
		LastUpdateTime:    now,
	}
}

// Clone returns a deep copy of the pool aggregates.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.DepositsSum = cloneBigInt(p.DepositsSum)
	clone.HoldBonusesSum = cloneBigInt(p.HoldBonusesSum)
	clone.CommitBonusesSum = cloneBigInt(p.CommitBonusesSum)
	clone.TotalCommitPoints = cloneBigInt(p.TotalCommitPoints)
	clone.AccumHoldPoints = cloneBigInt(p.AccumHoldPoints)
	return &clone
}

func (p *Pool) normalize() {
	if p.DepositsSum == nil {
		p.DepositsSum = big.NewInt(0)
	}
	if p.HoldBonusesSum == nil {
		p.HoldBonusesSum = big.NewInt(0)
	}
	if p.CommitBonusesSum == nil {
		p.CommitBonusesSum = big.NewInt(0)
	}
	if p.TotalCommitPoints == nil {
		p.TotalCommitPoints = big.NewInt(0)
	}
	if p.AccumHoldPoints == nil {
		p.AccumHoldPoints = big.NewInt(0)
	}
}

// fold accrues hold points up to now. Every mutation folds first so that
// AccumHoldPoints always equals the exact sum of live deposits' hold points at
// LastUpdateTime.
func (p *Pool) fold(now uint64) {
	if now <= p.LastUpdateTime {
		return
	}
	p.AccumHoldPoints.Add(p.AccumHoldPoints, HoldPoints(p.DepositsSum, p.LastUpdateTime, now))
	p.LastUpdateTime = now
}

// TotalHoldPointsAt returns the pool-wide hold-point total at now without
// mutating the pool.
func (p *Pool) TotalHoldPointsAt(now uint64) *big.Int {
	total := cloneBigInt(p.AccumHoldPoints)
	return total.Add(total, HoldPoints(p.DepositsSum, p.LastUpdateTime, now))
}

// WithdrawReceipt reports the outcome of a withdrawal. Payout is the ledger
// amount pushed out; Sent is the amount the adapter measured after any
// outbound transfer fee.
type WithdrawReceipt struct {
	ID          DepositID
	Asset       string
	Balance     *big.Int
	Penalty     *big.Int
	HoldBonus   *big.Int
	CommitBonus *big.Int
	Payout      *big.Int
	Sent        *big.Int
}

// DepositInfo is the query-side view of a deposit at a point in time.
type DepositInfo struct {
	ID                    DepositID
	Owner                 [20]byte
	Asset                 string
	Balance               *big.Int
	Time                  uint64
	InitialPenaltyPercent uint64
	CommitPeriod          uint64
	CurrentPenaltyPercent uint64
	CurrentPenalty        *big.Int
	TimeLeft              uint64
	HoldPoints            *big.Int
	CommitPoints          *big.Int
	HoldBonus             *big.Int
	CommitBonus           *big.Int
}

// PoolInfo is the query-side view of a pool's aggregates at a point in time.
type PoolInfo struct {
	Asset             string
	DepositsSum       *big.Int
	HoldBonusesSum    *big.Int
	CommitBonusesSum  *big.Int
	TotalHoldPoints   *big.Int
	TotalCommitPoints *big.Int
}
