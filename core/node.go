package core

import (
	"log/slog"
	"math/big"
	"sync"

	"hodlpool/core/events"
	"hodlpool/native/bank"
	"hodlpool/native/hodl"
	"hodlpool/observability/metrics"
	"hodlpool/state"
)

// Node is the transaction boundary around the pool engine. Every mutating
// operation runs serialized under the node mutex inside a state transaction,
// so calls are atomic and all-or-nothing: a failing step (including the
// outbound transfer) discards every staged write. This stands in for the
// host-runtime atomicity the accounting rules assume.
type Node struct {
	mu      sync.Mutex
	manager *state.Manager
	engine  *hodl.Engine
	book    *bank.Book
	logger  *slog.Logger
	paused  bool
}

// NewNode wires an engine and bank book over the state manager.
func NewNode(manager *state.Manager, params hodl.Params, vault [20]byte, logger *slog.Logger) (*Node, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		manager: manager,
		engine:  hodl.NewEngine(params),
		book:    bank.NewBook(vault),
		logger:  logger,
	}
	n.engine.SetAdapter(n.book)
	n.engine.SetEmitter(nodeEmitter{node: n})
	n.engine.SetPauses(n)
	return n, nil
}

// Book exposes the bank ledger for funding and fee configuration.
func (n *Node) Book() *bank.Book { return n.book }

// Engine exposes the engine for clock overrides in tests.
func (n *Node) Engine() *hodl.Engine { return n.engine }

// SetPaused toggles the operational pause switch for mutating operations.
func (n *Node) SetPaused(paused bool) {
	n.mu.Lock()
	n.paused = paused
	n.mu.Unlock()
}

// IsPaused implements the engine's PauseView. Callers already hold the node
// mutex during engine operations, so the field is read directly.
func (n *Node) IsPaused(string) bool { return n.paused }

// withTx binds the engine and book to a fresh state transaction, runs fn and
// commits only on success.
func (n *Node) withTx(fn func() error) error {
	tx := n.manager.Begin()
	defer tx.Discard()
	n.engine.SetState(tx)
	n.book.SetState(tx)
	defer func() {
		n.engine.SetState(nil)
		n.book.SetState(nil)
	}()
	if err := fn(); err != nil {
		return err
	}
	return tx.Commit()
}

// Deposit opens a fresh commitment. See hodl.Engine.Deposit.
func (n *Node) Deposit(owner [20]byte, asset string, amount *big.Int, initialPenaltyPercent, commitPeriod uint64) (*hodl.Deposit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var dep *hodl.Deposit
	err := n.withTx(func() error {
		var innerErr error
		dep, innerErr = n.engine.Deposit(owner, asset, amount, initialPenaltyPercent, commitPeriod)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	metrics.Hodl().ObserveDeposit(asset)
	return dep, nil
}

// TopUp merges funds into an existing commitment. See hodl.Engine.TopUp.
func (n *Node) TopUp(owner [20]byte, id hodl.DepositID, amount *big.Int, initialPenaltyPercent, commitPeriod uint64) (*hodl.Deposit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var dep *hodl.Deposit
	err := n.withTx(func() error {
		var innerErr error
		dep, innerErr = n.engine.TopUp(owner, id, amount, initialPenaltyPercent, commitPeriod)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	metrics.Hodl().ObserveDeposit(asset(dep))
	return dep, nil
}

// WithdrawWithPenalty closes a deposit early (or without claiming bonus).
func (n *Node) WithdrawWithPenalty(owner [20]byte, id hodl.DepositID) (*hodl.WithdrawReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var receipt *hodl.WithdrawReceipt
	err := n.withTx(func() error {
		var innerErr error
		receipt, innerErr = n.engine.WithdrawWithPenalty(owner, id)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	metrics.Hodl().ObserveWithdraw(receipt.Asset, "penalty", receipt.Penalty)
	return receipt, nil
}

// WithdrawWithBonus closes a matured deposit with its bonus share.
func (n *Node) WithdrawWithBonus(owner [20]byte, id hodl.DepositID) (*hodl.WithdrawReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var receipt *hodl.WithdrawReceipt
	err := n.withTx(func() error {
		var innerErr error
		receipt, innerErr = n.engine.WithdrawWithBonus(owner, id)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	metrics.Hodl().ObserveWithdraw(receipt.Asset, "bonus", nil)
	return receipt, nil
}

// TransferDeposit reassigns ownership of a deposit record.
func (n *Node) TransferDeposit(owner [20]byte, id hodl.DepositID, newOwner [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withTx(func() error {
		return n.engine.TransferDeposit(owner, id, newOwner)
	})
}

// FundAccount mints balance for an account, used for genesis allocations.
func (n *Node) FundAccount(asset string, addr [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withTx(func() error {
		return n.book.Mint(asset, addr, amount)
	})
}

// DepositInfo returns the live view of a deposit.
func (n *Node) DepositInfo(id hodl.DepositID) (*hodl.DepositInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var info *hodl.DepositInfo
	err := n.withTx(func() error {
		var innerErr error
		info, innerErr = n.engine.DepositInfo(id)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// PoolInfo returns the aggregates for an asset's pool and feeds the pool
// gauges.
func (n *Node) PoolInfo(asset string) (*hodl.PoolInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var info *hodl.PoolInfo
	err := n.withTx(func() error {
		var innerErr error
		info, innerErr = n.engine.PoolInfo(asset)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	metrics.Hodl().ObservePool(info.Asset, info.DepositsSum, info.HoldBonusesSum, info.CommitBonusesSum)
	return info, nil
}

// DepositsByOwner lists the caller's live deposits.
func (n *Node) DepositsByOwner(owner [20]byte) ([]*hodl.DepositInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var infos []*hodl.DepositInfo
	err := n.withTx(func() error {
		ids, innerErr := n.engine.DepositsByOwner(owner)
		if innerErr != nil {
			return innerErr
		}
		infos = make([]*hodl.DepositInfo, 0, len(ids))
		for _, id := range ids {
			info, innerErr := n.engine.DepositInfo(id)
			if innerErr != nil {
				return innerErr
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// BalanceOf reports an account's bank balance in an asset.
func (n *Node) BalanceOf(asset string, addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var balance *big.Int
	err := n.withTx(func() error {
		var innerErr error
		balance, innerErr = n.book.BalanceOf(asset, addr)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

func asset(dep *hodl.Deposit) string {
	if dep == nil {
		return ""
	}
	return dep.Asset
}

// nodeEmitter logs engine events through the node logger.
type nodeEmitter struct {
	node *Node
}

func (e nodeEmitter) Emit(event events.Event) {
	if e.node == nil || e.node.logger == nil || event == nil {
		return
	}
	attrs := event.Attributes()
	args := make([]any, 0, len(attrs)*2+2)
	args = append(args, slog.String("event", event.EventType()))
	for key, value := range attrs {
		args = append(args, slog.String(key, value))
	}
	e.node.logger.Info("pool event", args...)
}
