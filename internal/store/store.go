// Package store holds the keyed pool state: reserves per canonical pair and
// liquidity shares per (holder, pair). It is pure data; all invariants are
// enforced by the engine.
package store

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is the live reserve state for one canonical pair. Token0/Token1 follow
// canonical ordering.
type Pool struct {
	Token0   common.Address
	Token1   common.Address
	Reserve0 *big.Int
	Reserve1 *big.Int
}

func (p Pool) clone() Pool {
	return Pool{
		Token0:   p.Token0,
		Token1:   p.Token1,
		Reserve0: new(big.Int).Set(p.Reserve0),
		Reserve1: new(big.Int).Set(p.Reserve1),
	}
}

// PositionKey identifies one holder's claim on one pool.
type PositionKey struct {
	Holder common.Address
	Pair   common.Hash
}

// Store is the keyed state container. It is not safe for concurrent use; the
// engine serializes access.
type Store struct {
	pools     map[common.Hash]Pool
	positions map[PositionKey]*big.Int
}

func New() *Store {
	return &Store{
		pools:     make(map[common.Hash]Pool),
		positions: make(map[PositionKey]*big.Int),
	}
}

// Pool returns a copy of the pool state for the key.
func (s *Store) Pool(key common.Hash) (Pool, bool) {
	pool, ok := s.pools[key]
	if !ok {
		return Pool{}, false
	}
	return pool.clone(), true
}

// Position returns a copy of the holder's share balance, zero if absent.
func (s *Store) Position(holder common.Address, pair common.Hash) *big.Int {
	if shares, ok := s.positions[PositionKey{holder, pair}]; ok {
		return new(big.Int).Set(shares)
	}
	return big.NewInt(0)
}

// Begin opens a staged transaction. Reads fall through to the store; writes
// stay in the overlay until Commit. Abandoning the Tx discards everything.
func (s *Store) Begin() *Tx {
	return &Tx{
		store:     s,
		pools:     make(map[common.Hash]Pool),
		positions: make(map[PositionKey]*big.Int),
	}
}

// Tx is a scratch overlay over the store.
type Tx struct {
	store     *Store
	pools     map[common.Hash]Pool
	positions map[PositionKey]*big.Int
}

// Pool reads through the overlay, returning a copy.
func (tx *Tx) Pool(key common.Hash) (Pool, bool) {
	if pool, ok := tx.pools[key]; ok {
		return pool.clone(), true
	}
	return tx.store.Pool(key)
}

// SetPool stages a pool write.
func (tx *Tx) SetPool(key common.Hash, pool Pool) {
	tx.pools[key] = pool.clone()
}

// Position reads through the overlay, returning a copy.
func (tx *Tx) Position(holder common.Address, pair common.Hash) *big.Int {
	if shares, ok := tx.positions[PositionKey{holder, pair}]; ok {
		return new(big.Int).Set(shares)
	}
	return tx.store.Position(holder, pair)
}

// SetPosition stages a share-balance write.
func (tx *Tx) SetPosition(holder common.Address, pair common.Hash, shares *big.Int) {
	tx.positions[PositionKey{holder, pair}] = new(big.Int).Set(shares)
}

// Commit applies every staged write to the store.
func (tx *Tx) Commit() {
	for key, pool := range tx.pools {
		tx.store.pools[key] = pool
	}
	for key, shares := range tx.positions {
		if shares.Sign() == 0 {
			delete(tx.store.positions, key)
			continue
		}
		tx.store.positions[key] = shares
	}
	tx.pools = make(map[common.Hash]Pool)
	tx.positions = make(map[PositionKey]*big.Int)
}
