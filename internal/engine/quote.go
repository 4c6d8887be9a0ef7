package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Scale is the fixed-point factor for spot prices: a price of Scale means
// one unit of B per unit of A.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// SpotPrice returns the current price of assetA denominated in assetB,
// scaled by Scale. It fails when the pair has never been provisioned or the
// input-side reserve is zero.
func (e *Engine) SpotPrice(assetA, assetB common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, err := PairKey(assetA, assetB)
	if err != nil {
		return nil, err
	}
	pool, ok := e.store.Pool(key)
	if !ok {
		return nil, ErrInsufficientLiquidity
	}
	reserveA, reserveB := orientReserves(pool, assetA)
	if reserveA.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}

	price := new(big.Int).Mul(reserveB, Scale)
	return price.Div(price, reserveA), nil
}

// QuoteOutput computes the no-fee constant-product output for an exact
// input against the given reserves, truncating. It is stateless and mirrors
// the swap formula's fee-free case.
func QuoteOutput(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInsufficientInput
	}
	if reserveIn == nil || reserveIn.Sign() <= 0 || reserveOut == nil || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	numerator := new(big.Int).Mul(amountIn, reserveOut)
	denominator := new(big.Int).Add(reserveIn, amountIn)
	return numerator.Div(numerator, denominator), nil
}
