package bank

import (
	"errors"
	"math/big"
	"testing"
)

type mockBookState struct {
	balances map[string]map[[20]byte]*big.Int
}

func newMockBookState() *mockBookState {
	return &mockBookState{balances: make(map[string]map[[20]byte]*big.Int)}
}

func (m *mockBookState) AccountBalance(asset string, addr [20]byte) (*big.Int, bool) {
	accounts, ok := m.balances[asset]
	if !ok {
		return nil, false
	}
	bal, ok := accounts[addr]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(bal), true
}

func (m *mockBookState) AccountPut(asset string, addr [20]byte, balance *big.Int) error {
	accounts, ok := m.balances[asset]
	if !ok {
		accounts = make(map[[20]byte]*big.Int)
		m.balances[asset] = accounts
	}
	accounts[addr] = new(big.Int).Set(balance)
	return nil
}

func makeAddr(suffix byte) [20]byte {
	var addr [20]byte
	addr[len(addr)-1] = suffix
	return addr
}

func newTestBook(t *testing.T) (*Book, *mockBookState) {
	t.Helper()
	state := newMockBookState()
	book := NewBook(makeAddr(0xaa))
	book.SetState(state)
	return book, state
}

func TestMintAndBalance(t *testing.T) {
	book, _ := newTestBook(t)
	holder := makeAddr(1)

	if err := book.Mint("HODL", holder, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	bal, err := book.BalanceOf("HODL", holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("balance = %s, want 1000", bal)
	}

	if err := book.Mint("HODL", holder, big.NewInt(-5)); !errors.Is(err, errInvalidAmount) {
		t.Fatalf("negative mint: err = %v, want errInvalidAmount", err)
	}
}

func TestPullInMovesFundsToVault(t *testing.T) {
	book, _ := newTestBook(t)
	holder := makeAddr(1)

	if err := book.Mint("HODL", holder, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	received, err := book.PullIn("HODL", holder, big.NewInt(600))
	if err != nil {
		t.Fatalf("pull in: %v", err)
	}
	if received.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("received = %s, want 600", received)
	}

	holderBal, _ := book.BalanceOf("HODL", holder)
	vaultBal, _ := book.BalanceOf("HODL", book.Vault())
	if holderBal.Cmp(big.NewInt(400)) != 0 || vaultBal.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("balances = (%s, %s), want (400, 600)", holderBal, vaultBal)
	}
}

func TestPullInRejectsOverdraft(t *testing.T) {
	book, _ := newTestBook(t)
	holder := makeAddr(1)

	if err := book.Mint("HODL", holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := book.PullIn("HODL", holder, big.NewInt(101)); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("err = %v, want errInsufficientBalance", err)
	}
}

func TestTransferFeeBurnsOnEveryLeg(t *testing.T) {
	book, _ := newTestBook(t)
	holder := makeAddr(1)

	if err := book.SetTransferFee("HODL", 1000); err != nil { // 10%
		t.Fatalf("set fee: %v", err)
	}
	if err := book.Mint("HODL", holder, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	received, err := book.PullIn("HODL", holder, big.NewInt(1000))
	if err != nil {
		t.Fatalf("pull in: %v", err)
	}
	if received.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("vault received %s, want 900", received)
	}
	vaultBal, _ := book.BalanceOf("HODL", book.Vault())
	if vaultBal.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("vault balance = %s, want 900", vaultBal)
	}

	sent, err := book.PushOut("HODL", holder, big.NewInt(900))
	if err != nil {
		t.Fatalf("push out: %v", err)
	}
	if sent.Cmp(big.NewInt(810)) != 0 {
		t.Fatalf("holder received %s, want 810", sent)
	}
	holderBal, _ := book.BalanceOf("HODL", holder)
	if holderBal.Cmp(big.NewInt(810)) != 0 {
		t.Fatalf("holder balance = %s, want 810", holderBal)
	}
}

func TestSetTransferFeeBounds(t *testing.T) {
	book, _ := newTestBook(t)
	if err := book.SetTransferFee("HODL", 10_000); err == nil {
		t.Fatal("100% fee accepted")
	}
	if err := book.SetTransferFee("", 10); !errors.Is(err, errAssetRequired) {
		t.Fatalf("err = %v, want errAssetRequired", err)
	}
}

func TestVaultRequired(t *testing.T) {
	book := NewBook([20]byte{})
	book.SetState(newMockBookState())
	if _, err := book.PullIn("HODL", makeAddr(1), big.NewInt(1)); !errors.Is(err, errNilVault) {
		t.Fatalf("err = %v, want errNilVault", err)
	}
}

func TestAssetsAreIsolated(t *testing.T) {
	book, _ := newTestBook(t)
	holder := makeAddr(1)

	if err := book.Mint("HODL", holder, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	other, err := book.BalanceOf("OTHER", holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if other.Sign() != 0 {
		t.Fatalf("OTHER balance = %s, want 0", other)
	}
	if _, err := book.PullIn("OTHER", holder, big.NewInt(1)); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("err = %v, want errInsufficientBalance", err)
	}
}
