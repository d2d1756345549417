package state

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"hodlpool/native/hodl"
	"hodlpool/storage"
)

const (
	depositKeyPrefix = "hodl/deposit/"
	poolKeyPrefix    = "hodl/pool/"
	accountKeyPrefix = "bank/acct/"
	seqKey           = "hodl/seq"
)

var errManagerClosed = errors.New("state: manager not initialised")

type acctKey struct {
	asset string
	addr  [20]byte
}

// accountRecord is the stored form of a bank balance. The asset and address
// live inside the value so loading never has to parse keys.
type accountRecord struct {
	Asset   string
	Addr    [20]byte
	Balance *big.Int
}

// Manager holds the authoritative in-memory view of all deposits, pools and
// bank balances, mirrored in the KV store. Mutations happen exclusively
// through transactions: Begin returns an isolated overlay whose writes become
// visible and durable only on Commit.
type Manager struct {
	mu sync.RWMutex
	db storage.Database

	deposits   map[hodl.DepositID]*hodl.Deposit
	pools      map[string]*hodl.Pool
	accounts   map[acctKey]*big.Int
	ownerIndex map[[20]byte]map[hodl.DepositID]struct{}
	seq        uint64
}

// NewManager opens a manager over the database, loading every stored record
// into memory.
func NewManager(db storage.Database) (*Manager, error) {
	if db == nil {
		return nil, errManagerClosed
	}
	m := &Manager{
		db:         db,
		deposits:   make(map[hodl.DepositID]*hodl.Deposit),
		pools:      make(map[string]*hodl.Pool),
		accounts:   make(map[acctKey]*big.Int),
		ownerIndex: make(map[[20]byte]map[hodl.DepositID]struct{}),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	if err := m.db.IteratePrefix([]byte(depositKeyPrefix), func(_, value []byte) error {
		dep := new(hodl.Deposit)
		if err := rlp.DecodeBytes(value, dep); err != nil {
			return fmt.Errorf("state: decode deposit: %w", err)
		}
		m.deposits[dep.ID] = dep
		m.indexOwner(dep.Owner, dep.ID)
		return nil
	}); err != nil {
		return err
	}
	if err := m.db.IteratePrefix([]byte(poolKeyPrefix), func(_, value []byte) error {
		pool := new(hodl.Pool)
		if err := rlp.DecodeBytes(value, pool); err != nil {
			return fmt.Errorf("state: decode pool: %w", err)
		}
		m.pools[pool.Asset] = pool
		return nil
	}); err != nil {
		return err
	}
	if err := m.db.IteratePrefix([]byte(accountKeyPrefix), func(_, value []byte) error {
		rec := new(accountRecord)
		if err := rlp.DecodeBytes(value, rec); err != nil {
			return fmt.Errorf("state: decode account: %w", err)
		}
		m.accounts[acctKey{asset: rec.Asset, addr: rec.Addr}] = rec.Balance
		return nil
	}); err != nil {
		return err
	}
	raw, err := m.db.Get([]byte(seqKey))
	switch {
	case err == nil:
		if len(raw) != 8 {
			return fmt.Errorf("state: malformed deposit sequence record")
		}
		m.seq = binary.BigEndian.Uint64(raw)
	case errors.Is(err, storage.ErrNotFound):
		m.seq = 0
	default:
		return err
	}
	return nil
}

func (m *Manager) indexOwner(owner [20]byte, id hodl.DepositID) {
	ids, ok := m.ownerIndex[owner]
	if !ok {
		ids = make(map[hodl.DepositID]struct{})
		m.ownerIndex[owner] = ids
	}
	ids[id] = struct{}{}
}

func (m *Manager) unindexOwner(owner [20]byte, id hodl.DepositID) {
	if ids, ok := m.ownerIndex[owner]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.ownerIndex, owner)
		}
	}
}

func depositKey(id hodl.DepositID) []byte {
	return []byte(depositKeyPrefix + hex.EncodeToString(id[:]))
}

func poolKey(asset string) []byte {
	return []byte(poolKeyPrefix + asset)
}

func accountKey(asset string, addr [20]byte) []byte {
	return []byte(accountKeyPrefix + asset + "/" + hex.EncodeToString(addr[:]))
}

// Begin opens a transaction. Reads see committed state plus the overlay's own
// writes; nothing escapes until Commit.
func (m *Manager) Begin() *Tx {
	return &Tx{
		m:        m,
		deposits: make(map[hodl.DepositID]*hodl.Deposit),
		pools:    make(map[string]*hodl.Pool),
		accounts: make(map[acctKey]*big.Int),
	}
}

// Tx is a copy-on-write overlay over the manager. It satisfies both the pool
// engine's and the bank book's state interfaces so a whole operation commits
// or discards as one unit. A nil deposit entry in the overlay marks a delete.
type Tx struct {
	m        *Manager
	deposits map[hodl.DepositID]*hodl.Deposit
	pools    map[string]*hodl.Pool
	accounts map[acctKey]*big.Int
	seq      *uint64
	done     bool
}

// PoolGet returns a private copy of the pool so engine mutations stay inside
// the transaction until PoolPut.
func (tx *Tx) PoolGet(asset string) (*hodl.Pool, bool) {
	if pool, ok := tx.pools[asset]; ok {
		return pool.Clone(), pool != nil
	}
	tx.m.mu.RLock()
	defer tx.m.mu.RUnlock()
	pool, ok := tx.m.pools[asset]
	if !ok {
		return nil, false
	}
	return pool.Clone(), true
}

// PoolPut stages a pool write.
func (tx *Tx) PoolPut(pool *hodl.Pool) error {
	if pool == nil {
		return fmt.Errorf("state: nil pool")
	}
	tx.pools[pool.Asset] = pool.Clone()
	return nil
}

// DepositGet returns a private copy of a deposit record.
func (tx *Tx) DepositGet(id hodl.DepositID) (*hodl.Deposit, bool) {
	if dep, ok := tx.deposits[id]; ok {
		if dep == nil {
			return nil, false
		}
		return dep.Clone(), true
	}
	tx.m.mu.RLock()
	defer tx.m.mu.RUnlock()
	dep, ok := tx.m.deposits[id]
	if !ok {
		return nil, false
	}
	return dep.Clone(), true
}

// DepositPut stages a deposit write.
func (tx *Tx) DepositPut(dep *hodl.Deposit) error {
	if dep == nil {
		return fmt.Errorf("state: nil deposit")
	}
	tx.deposits[dep.ID] = dep.Clone()
	return nil
}

// DepositDelete stages a deposit removal.
func (tx *Tx) DepositDelete(id hodl.DepositID) error {
	tx.deposits[id] = nil
	return nil
}

// DepositIDsByOwner merges the committed owner index with the overlay,
// returning identifiers in a deterministic order.
func (tx *Tx) DepositIDsByOwner(owner [20]byte) []hodl.DepositID {
	seen := make(map[hodl.DepositID]bool)
	tx.m.mu.RLock()
	for id := range tx.m.ownerIndex[owner] {
		seen[id] = true
	}
	tx.m.mu.RUnlock()
	for id, dep := range tx.deposits {
		if dep == nil {
			delete(seen, id)
			continue
		}
		if dep.Owner == owner {
			seen[id] = true
		} else {
			delete(seen, id)
		}
	}
	ids := make([]hodl.DepositID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}

// NextDepositSeq returns the next deposit sequence number, staged until
// Commit.
func (tx *Tx) NextDepositSeq() (uint64, error) {
	if tx.seq == nil {
		tx.m.mu.RLock()
		current := tx.m.seq
		tx.m.mu.RUnlock()
		tx.seq = &current
	}
	*tx.seq++
	return *tx.seq, nil
}

// AccountBalance reports a bank balance within the transaction's view.
func (tx *Tx) AccountBalance(asset string, addr [20]byte) (*big.Int, bool) {
	key := acctKey{asset: asset, addr: addr}
	if bal, ok := tx.accounts[key]; ok {
		return new(big.Int).Set(bal), true
	}
	tx.m.mu.RLock()
	defer tx.m.mu.RUnlock()
	bal, ok := tx.m.accounts[key]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(bal), true
}

// AccountPut stages a bank balance write.
func (tx *Tx) AccountPut(asset string, addr [20]byte, balance *big.Int) error {
	if balance == nil || balance.Sign() < 0 {
		return fmt.Errorf("state: invalid account balance")
	}
	tx.accounts[acctKey{asset: asset, addr: addr}] = new(big.Int).Set(balance)
	return nil
}

// Commit applies the overlay to the in-memory view and the KV store. The
// transaction must not be reused afterwards.
func (tx *Tx) Commit() error {
	if tx.done {
		return fmt.Errorf("state: transaction already finished")
	}
	tx.done = true
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()

	for id, dep := range tx.deposits {
		if dep == nil {
			if prev, ok := tx.m.deposits[id]; ok {
				tx.m.unindexOwner(prev.Owner, id)
				delete(tx.m.deposits, id)
			}
			if err := tx.m.db.Delete(depositKey(id)); err != nil {
				return err
			}
			continue
		}
		if prev, ok := tx.m.deposits[id]; ok && prev.Owner != dep.Owner {
			tx.m.unindexOwner(prev.Owner, id)
		}
		encoded, err := rlp.EncodeToBytes(dep)
		if err != nil {
			return fmt.Errorf("state: encode deposit: %w", err)
		}
		if err := tx.m.db.Put(depositKey(id), encoded); err != nil {
			return err
		}
		tx.m.deposits[id] = dep
		tx.m.indexOwner(dep.Owner, id)
	}
	for asset, pool := range tx.pools {
		encoded, err := rlp.EncodeToBytes(pool)
		if err != nil {
			return fmt.Errorf("state: encode pool: %w", err)
		}
		if err := tx.m.db.Put(poolKey(asset), encoded); err != nil {
			return err
		}
		tx.m.pools[asset] = pool
	}
	for key, balance := range tx.accounts {
		rec := &accountRecord{Asset: key.asset, Addr: key.addr, Balance: balance}
		encoded, err := rlp.EncodeToBytes(rec)
		if err != nil {
			return fmt.Errorf("state: encode account: %w", err)
		}
		if err := tx.m.db.Put(accountKey(key.asset, key.addr), encoded); err != nil {
			return err
		}
		tx.m.accounts[key] = balance
	}
	if tx.seq != nil {
		var raw [8]byte
		binary.BigEndian.PutUint64(raw[:], *tx.seq)
		if err := tx.m.db.Put([]byte(seqKey), raw[:]); err != nil {
			return err
		}
		tx.m.seq = *tx.seq
	}
	return nil
}

// Discard drops the overlay. Safe to call after Commit.
func (tx *Tx) Discard() {
	tx.done = true
	tx.deposits = nil
	tx.pools = nil
	tx.accounts = nil
	tx.seq = nil
}
