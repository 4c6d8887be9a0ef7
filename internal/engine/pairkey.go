package engine

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SortTokens returns the two asset identifiers in canonical order. It fails
// on a degenerate pair of identical assets.
func SortTokens(assetA, assetB common.Address) (common.Address, common.Address, error) {
	if assetA == assetB {
		return common.Address{}, common.Address{}, ErrIdenticalAssets
	}
	if bytes.Compare(assetA.Bytes(), assetB.Bytes()) > 0 {
		assetA, assetB = assetB, assetA
	}
	return assetA, assetB, nil
}

// PairKey derives the canonical order-independent pool key for two assets.
// Every pool lookup routes through this function; callers supplying the same
// two assets in either order observe the same pool.
func PairKey(assetA, assetB common.Address) (common.Hash, error) {
	token0, token1, err := SortTokens(assetA, assetB)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(token0.Bytes(), token1.Bytes()), nil
}

// custodyAccount derives the ledger account holding a pool's reserves from
// its pair key.
func custodyAccount(key common.Hash) common.Address {
	return common.BytesToAddress(key[12:])
}
