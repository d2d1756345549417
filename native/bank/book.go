package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

const maxFeeBps uint64 = 10_000

var (
	errNilState            = errors.New("bank book: state not configured")
	errNilVault            = errors.New("bank book: vault address not configured")
	errInvalidAmount       = errors.New("bank book: amount must be positive")
	errInsufficientBalance = errors.New("bank book: insufficient balance")
	errAssetRequired       = errors.New("bank book: asset required")
)

// bookState is the persistence surface for account balances, keyed by asset
// and address. The node binds the book to the same state transaction as the
// pool engine so transfers commit or discard together with ledger mutations.
type bookState interface {
	AccountBalance(asset string, addr [20]byte) (*big.Int, bool)
	AccountPut(asset string, addr [20]byte, balance *big.Int) error
}

// Book is a per-asset account ledger standing in for the external token
// layer. Assets may charge a transfer fee in basis points; the fee is
// deducted from every leg and burned, so receivers always measure what
// actually arrived. Book implements the pool engine's TransferAdapter.
type Book struct {
	state bookState
	vault [20]byte

	mu   sync.RWMutex
	fees map[string]uint64
}

// NewBook constructs a book whose vault address holds pooled funds.
func NewBook(vault [20]byte) *Book {
	return &Book{vault: vault, fees: make(map[string]uint64)}
}

// SetState wires the book to the persistence layer.
func (b *Book) SetState(state bookState) { b.state = state }

// Vault returns the address funds are pooled under.
func (b *Book) Vault() [20]byte { return b.vault }

// SetTransferFee configures the fee charged on every transfer of the asset,
// in basis points of the transferred amount.
func (b *Book) SetTransferFee(asset string, bps uint64) error {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return errAssetRequired
	}
	if bps >= maxFeeBps {
		return fmt.Errorf("bank book: transfer fee %d bps out of range", bps)
	}
	b.mu.Lock()
	b.fees[asset] = bps
	b.mu.Unlock()
	return nil
}

func (b *Book) transferFee(asset string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fees[asset]
}

// Mint credits freshly issued units to an account. Used for genesis funding
// and tests; the pool engine never mints.
func (b *Book) Mint(asset string, addr [20]byte, amount *big.Int) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if strings.TrimSpace(asset) == "" {
		return errAssetRequired
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	balance := b.balance(asset, addr)
	balance.Add(balance, amount)
	return b.state.AccountPut(asset, addr, balance)
}

// BalanceOf reports the balance an account holds in an asset.
func (b *Book) BalanceOf(asset string, addr [20]byte) (*big.Int, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	return b.balance(asset, addr), nil
}

func (b *Book) balance(asset string, addr [20]byte) *big.Int {
	if bal, ok := b.state.AccountBalance(asset, addr); ok && bal != nil {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// transfer debits the full amount from the sender, burns the asset's transfer
// fee and credits the remainder to the receiver. It returns the amount the
// receiver actually obtained.
func (b *Book) transfer(asset string, from, to [20]byte, amount *big.Int) (*big.Int, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	if strings.TrimSpace(asset) == "" {
		return nil, errAssetRequired
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	fromBal := b.balance(asset, from)
	if fromBal.Cmp(amount) < 0 {
		return nil, errInsufficientBalance
	}
	fee := new(big.Int)
	if bps := b.transferFee(asset); bps > 0 {
		fee.Mul(amount, new(big.Int).SetUint64(bps))
		fee.Quo(fee, new(big.Int).SetUint64(maxFeeBps))
	}
	received := new(big.Int).Sub(amount, fee)

	fromBal.Sub(fromBal, amount)
	toBal := b.balance(asset, to)
	toBal.Add(toBal, received)

	if err := b.state.AccountPut(asset, from, fromBal); err != nil {
		return nil, err
	}
	if err := b.state.AccountPut(asset, to, toBal); err != nil {
		return nil, err
	}
	return received, nil
}

// PullIn moves funds from an account into the vault and reports the amount
// the vault measured after fees. Implements hodl.TransferAdapter.
func (b *Book) PullIn(asset string, from [20]byte, amount *big.Int) (*big.Int, error) {
	if b.vault == ([20]byte{}) {
		return nil, errNilVault
	}
	return b.transfer(asset, from, b.vault, amount)
}

// PushOut moves funds from the vault to an account and reports the amount
// the account measured after fees. Implements hodl.TransferAdapter.
func (b *Book) PushOut(asset string, to [20]byte, amount *big.Int) (*big.Int, error) {
	if b.vault == ([20]byte{}) {
		return nil, errNilVault
	}
	return b.transfer(asset, b.vault, to, amount)
}
