package hodl

import (
	"encoding/binary"
	"math/big"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"hodlpool/core/events"
	nativecommon "hodlpool/native/common"
)

const moduleName = "hodl"

// engineState is the persistence surface the engine mutates. Implementations
// must apply every write atomically with the surrounding operation: the node
// binds the engine to a state transaction and discards it on error.
type engineState interface {
	PoolGet(asset string) (*Pool, bool)
	PoolPut(*Pool) error
	DepositGet(id DepositID) (*Deposit, bool)
	DepositPut(*Deposit) error
	DepositDelete(id DepositID) error
	DepositIDsByOwner(owner [20]byte) []DepositID
	// NextDepositSeq returns a monotonically increasing sequence number used
	// to derive deposit identifiers.
	NextDepositSeq() (uint64, error)
}

// TransferAdapter moves value in and out of the pool vault. Both directions
// report the amount actually moved so the ledger tolerates fee-on-transfer
// assets: the engine only ever credits or announces measured amounts.
type TransferAdapter interface {
	PullIn(asset string, from [20]byte, amount *big.Int) (*big.Int, error)
	PushOut(asset string, to [20]byte, amount *big.Int) (*big.Int, error)
}

// Engine implements the deposit/withdraw state machine and the penalty and
// bonus accounting over per-asset pools.
type Engine struct {
	state   engineState
	adapter TransferAdapter
	params  Params
	emitter events.Emitter
	nowFn   func() uint64
	pauses  nativecommon.PauseView
}

// NewEngine constructs an engine with the supplied commitment bounds and a
// no-op emitter. State and adapter are wired separately.
func NewEngine(params Params) *Engine {
	return &Engine{
		params:  params,
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAdapter wires the engine to the value-transfer collaborator.
func (e *Engine) SetAdapter(adapter TransferAdapter) { e.adapter = adapter }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// SetPauses wires the operational pause switch.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Params returns the commitment bounds the engine enforces.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) emit(event events.Event) {
	if e.emitter != nil && event != nil {
		e.emitter.Emit(event)
	}
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.adapter == nil {
		return errNilAdapter
	}
	return nil
}

func (e *Engine) ensurePool(asset string, now uint64) *Pool {
	pool, ok := e.state.PoolGet(asset)
	if !ok || pool == nil {
		return newPool(asset, now)
	}
	pool.normalize()
	return pool
}

func (e *Engine) loadDeposit(id DepositID, owner [20]byte) (*Deposit, error) {
	dep, ok := e.state.DepositGet(id)
	if !ok || dep == nil {
		return nil, ErrNoSuchDeposit
	}
	dep.normalize()
	if dep.Owner != owner {
		return nil, ErrNotOwner
	}
	return dep, nil
}

func depositIDFor(owner [20]byte, asset string, seq uint64) DepositID {
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	return DepositID(ethcrypto.Keccak256Hash(owner[:], []byte(asset), seqBytes[:]))
}

// Deposit pulls funds from the owner and opens a fresh commitment in the
// asset's pool. The credited amount is whatever the adapter reports received,
// which may be less than requested for fee-on-transfer assets.
func (e *Engine) Deposit(owner [20]byte, asset string, amount *big.Int, initialPenaltyPercent, commitPeriod uint64) (*Deposit, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if owner == ([20]byte{}) {
		return nil, errOwnerUnset
	}
	if strings.TrimSpace(asset) == "" {
		return nil, errAssetName
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmnt
	}
	if err := e.params.CheckCommitment(initialPenaltyPercent, commitPeriod); err != nil {
		return nil, err
	}

	credited, err := e.adapter.PullIn(asset, owner, amount)
	if err != nil {
		return nil, err
	}
	if credited == nil || credited.Sign() == 0 {
		return nil, ErrEmptyDeposit
	}

	now := e.now()
	pool := e.ensurePool(asset, now)
	pool.fold(now)

	seq, err := e.state.NextDepositSeq()
	if err != nil {
		return nil, err
	}
	dep := &Deposit{
		ID:                    depositIDFor(owner, asset, seq),
		Owner:                 owner,
		Asset:                 asset,
		Balance:               cloneBigInt(credited),
		Time:                  now,
		InitialPenaltyPercent: initialPenaltyPercent,
		CommitPeriod:          commitPeriod,
		PrevHoldPoints:        big.NewInt(0),
		CommitPoints:          CommitPoints(credited, commitPeriod, initialPenaltyPercent),
	}

	pool.DepositsSum.Add(pool.DepositsSum, credited)
	pool.TotalCommitPoints.Add(pool.TotalCommitPoints, dep.CommitPoints)

	if err := e.state.DepositPut(dep); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}

	e.emit(events.HodlDeposited{
		ID:           dep.ID,
		Owner:        owner,
		Asset:        asset,
		Credited:     cloneBigInt(credited),
		CommitPeriod: commitPeriod,
		Penalty:      initialPenaltyPercent,
	})
	return dep.Clone(), nil
}

// TopUp merges additional funds into an existing deposit under new commitment
// terms. The new terms may not be weaker than what remains of the current
// commitment: the commit period cannot shrink below the remaining
// time-to-hold and the penalty percent cannot shrink below the currently
// decayed percent, so penalty exposure cannot be laundered away by an
// immediate re-deposit. Points accrued so far carry over exactly.
func (e *Engine) TopUp(owner [20]byte, id DepositID, amount *big.Int, initialPenaltyPercent, commitPeriod uint64) (*Deposit, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmnt
	}
	if err := e.params.CheckCommitment(initialPenaltyPercent, commitPeriod); err != nil {
		return nil, err
	}

	dep, err := e.loadDeposit(id, owner)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if left := dep.TimeLeft(now); commitPeriod < left {
		return nil, ErrInvalidCommitment
	}
	if current := dep.CurrentPenaltyPercent(now); initialPenaltyPercent < current {
		return nil, ErrInvalidCommitment
	}

	credited, err := e.adapter.PullIn(dep.Asset, owner, amount)
	if err != nil {
		return nil, err
	}
	if credited == nil || credited.Sign() == 0 {
		return nil, ErrEmptyDeposit
	}

	pool := e.ensurePool(dep.Asset, now)
	pool.fold(now)

	prior := snapshotCarryOver(dep, now)
	dep.Balance.Add(dep.Balance, credited)
	dep.Time = now
	dep.InitialPenaltyPercent = initialPenaltyPercent
	dep.CommitPeriod = commitPeriod
	dep.PrevHoldPoints = prior.holdPoints
	freshCommit := CommitPoints(dep.Balance, commitPeriod, initialPenaltyPercent)
	dep.CommitPoints = new(big.Int).Add(prior.commitPoints, freshCommit)

	pool.DepositsSum.Add(pool.DepositsSum, credited)
	pool.TotalCommitPoints.Add(pool.TotalCommitPoints, freshCommit)

	if err := e.state.DepositPut(dep); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}

	e.emit(events.HodlToppedUp{
		ID:         dep.ID,
		Owner:      owner,
		Asset:      dep.Asset,
		Credited:   cloneBigInt(credited),
		NewBalance: cloneBigInt(dep.Balance),
	})
	return dep.Clone(), nil
}

// WithdrawWithPenalty closes a deposit at any time, forfeiting the decayed
// penalty into the pool's bonus halves. After maturity the penalty is zero
// but no bonus is paid; callers wanting their bonus share use
// WithdrawWithBonus. The deposit record is destroyed before the outbound
// transfer executes.
func (e *Engine) WithdrawWithPenalty(owner [20]byte, id DepositID) (*WithdrawReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	dep, err := e.loadDeposit(id, owner)
	if err != nil {
		return nil, err
	}
	now := e.now()
	pool := e.ensurePool(dep.Asset, now)
	pool.fold(now)

	penalty := dep.PenaltyAt(now)
	payout := new(big.Int).Sub(dep.Balance, penalty)
	holdHalf, commitHalf := splitHalf(penalty)

	e.removeFromPool(pool, dep, now)
	pool.HoldBonusesSum.Add(pool.HoldBonusesSum, holdHalf)
	pool.CommitBonusesSum.Add(pool.CommitBonusesSum, commitHalf)

	if err := e.state.DepositDelete(id); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}

	sent, err := e.pushOut(dep.Asset, owner, payout)
	if err != nil {
		return nil, err
	}

	receipt := &WithdrawReceipt{
		ID:          id,
		Asset:       dep.Asset,
		Balance:     cloneBigInt(dep.Balance),
		Penalty:     penalty,
		HoldBonus:   big.NewInt(0),
		CommitBonus: big.NewInt(0),
		Payout:      payout,
		Sent:        sent,
	}
	e.emit(events.HodlWithdrawn{
		ID:          id,
		Owner:       owner,
		Asset:       dep.Asset,
		Payout:      cloneBigInt(payout),
		Penalty:     cloneBigInt(penalty),
		HoldBonus:   big.NewInt(0),
		CommitBonus: big.NewInt(0),
		Mature:      false,
	})
	return receipt, nil
}

// WithdrawWithBonus closes a matured deposit and pays out its proportional
// share of both bonus pools. It fails with ErrStillPenalized while the
// penalty percent is nonzero. When the withdrawer holds all remaining points
// on a side it receives that entire bonus pool, so no dust is stranded by
// truncating division.
func (e *Engine) WithdrawWithBonus(owner [20]byte, id DepositID) (*WithdrawReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	dep, err := e.loadDeposit(id, owner)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if dep.CurrentPenaltyPercent(now) != 0 {
		return nil, ErrStillPenalized
	}
	pool := e.ensurePool(dep.Asset, now)
	pool.fold(now)

	holdPoints := dep.HoldPointsAt(now)
	holdBonus := bonusShare(pool.HoldBonusesSum, holdPoints, pool.AccumHoldPoints)
	commitBonus := bonusShare(pool.CommitBonusesSum, dep.CommitPoints, pool.TotalCommitPoints)

	payout := new(big.Int).Add(dep.Balance, holdBonus)
	payout.Add(payout, commitBonus)

	e.removeFromPool(pool, dep, now)
	pool.HoldBonusesSum.Sub(pool.HoldBonusesSum, holdBonus)
	pool.CommitBonusesSum.Sub(pool.CommitBonusesSum, commitBonus)

	if err := e.state.DepositDelete(id); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}

	sent, err := e.pushOut(dep.Asset, owner, payout)
	if err != nil {
		return nil, err
	}

	receipt := &WithdrawReceipt{
		ID:          id,
		Asset:       dep.Asset,
		Balance:     cloneBigInt(dep.Balance),
		Penalty:     big.NewInt(0),
		HoldBonus:   holdBonus,
		CommitBonus: commitBonus,
		Payout:      payout,
		Sent:        sent,
	}
	e.emit(events.HodlWithdrawn{
		ID:          id,
		Owner:       owner,
		Asset:       dep.Asset,
		Payout:      cloneBigInt(payout),
		Penalty:     big.NewInt(0),
		HoldBonus:   cloneBigInt(holdBonus),
		CommitBonus: cloneBigInt(commitBonus),
		Mature:      true,
	})
	return receipt, nil
}

// TransferDeposit reassigns ownership of a deposit. Balance, points and
// commitment terms are untouched; only who may withdraw changes.
func (e *Engine) TransferDeposit(owner [20]byte, id DepositID, newOwner [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if newOwner == ([20]byte{}) {
		return errOwnerUnset
	}
	dep, err := e.loadDeposit(id, owner)
	if err != nil {
		return err
	}
	if newOwner == owner {
		return nil
	}
	dep.Owner = newOwner
	if err := e.state.DepositPut(dep); err != nil {
		return err
	}
	e.emit(events.HodlDepositTransferred{
		ID:       id,
		Previous: owner,
		NewOwner: newOwner,
		Asset:    dep.Asset,
	})
	return nil
}

// DepositInfo returns the live view of a deposit, including the bonus either
// withdrawal path would pay right now.
func (e *Engine) DepositInfo(id DepositID) (*DepositInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	dep, ok := e.state.DepositGet(id)
	if !ok || dep == nil {
		return nil, ErrNoSuchDeposit
	}
	dep.normalize()
	now := e.now()
	info := &DepositInfo{
		ID:                    dep.ID,
		Owner:                 dep.Owner,
		Asset:                 dep.Asset,
		Balance:               cloneBigInt(dep.Balance),
		Time:                  dep.Time,
		InitialPenaltyPercent: dep.InitialPenaltyPercent,
		CommitPeriod:          dep.CommitPeriod,
		CurrentPenaltyPercent: dep.CurrentPenaltyPercent(now),
		CurrentPenalty:        dep.PenaltyAt(now),
		TimeLeft:              dep.TimeLeft(now),
		HoldPoints:            dep.HoldPointsAt(now),
		CommitPoints:          cloneBigInt(dep.CommitPoints),
		HoldBonus:             big.NewInt(0),
		CommitBonus:           big.NewInt(0),
	}
	if info.CurrentPenaltyPercent == 0 {
		if pool, ok := e.state.PoolGet(dep.Asset); ok && pool != nil {
			pool.normalize()
			info.HoldBonus = bonusShare(pool.HoldBonusesSum, info.HoldPoints, pool.TotalHoldPointsAt(now))
			info.CommitBonus = bonusShare(pool.CommitBonusesSum, dep.CommitPoints, pool.TotalCommitPoints)
		}
	}
	return info, nil
}

// PoolInfo returns the pool aggregates for an asset at the current time. An
// asset with no pool yet reports all-zero aggregates.
func (e *Engine) PoolInfo(asset string) (*PoolInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	now := e.now()
	pool, ok := e.state.PoolGet(asset)
	if !ok || pool == nil {
		pool = newPool(asset, now)
	}
	pool.normalize()
	return &PoolInfo{
		Asset:             asset,
		DepositsSum:       cloneBigInt(pool.DepositsSum),
		HoldBonusesSum:    cloneBigInt(pool.HoldBonusesSum),
		CommitBonusesSum:  cloneBigInt(pool.CommitBonusesSum),
		TotalHoldPoints:   pool.TotalHoldPointsAt(now),
		TotalCommitPoints: cloneBigInt(pool.TotalCommitPoints),
	}, nil
}

// DepositsByOwner lists the identifiers of every live deposit owned by the
// account.
func (e *Engine) DepositsByOwner(owner [20]byte) ([]DepositID, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.DepositIDsByOwner(owner), nil
}

// removeFromPool subtracts a closing deposit's balance and current points
// from the aggregates. The pool must already be folded to now. Because every
// term is an exact integer product, an emptied pool lands on exactly zero.
func (e *Engine) removeFromPool(pool *Pool, dep *Deposit, now uint64) {
	pool.DepositsSum.Sub(pool.DepositsSum, dep.Balance)
	pool.AccumHoldPoints.Sub(pool.AccumHoldPoints, dep.HoldPointsAt(now))
	pool.TotalCommitPoints.Sub(pool.TotalCommitPoints, dep.CommitPoints)
}

func (e *Engine) pushOut(asset string, to [20]byte, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	sent, err := e.adapter.PushOut(asset, to, amount)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(sent), nil
}

// bonusShare computes pool * points / totalPoints with the last-holder rule:
// when the withdrawer holds every remaining point the entire pool is owed,
// sidestepping the dust that truncating division would strand.
func bonusShare(pool, points, totalPoints *big.Int) *big.Int {
	if pool == nil || pool.Sign() == 0 || points == nil || points.Sign() == 0 {
		return big.NewInt(0)
	}
	if totalPoints == nil || totalPoints.Sign() == 0 {
		return big.NewInt(0)
	}
	if points.Cmp(totalPoints) >= 0 {
		return cloneBigInt(pool)
	}
	return mulDiv(pool, points, totalPoints)
}
