package aggregate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/engine"
	"liquidityEngine/internal/model"
)

// Accumulator holds aggregate swap values for one pool window.
type Accumulator struct {
	PairKey     string
	Token0      string
	Token1      string
	WindowStart int64
	WindowEnd   int64
	SwapCount   uint64
	Volume0     *big.Int
	Volume1     *big.Int
	Fee0        *big.Int
	Fee1        *big.Int
}

func NewAccumulator(pairKey string, windowStart, windowEnd int64) *Accumulator {
	return &Accumulator{
		PairKey:     pairKey,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Volume0:     big.NewInt(0),
		Volume1:     big.NewInt(0),
		Fee0:        big.NewInt(0),
		Fee1:        big.NewInt(0),
	}
}

// AddSwap folds one swap event into the window. Volumes accumulate per
// canonical token position; the fee accrues on the input side.
func (a *Accumulator) AddSwap(swap model.SwapExecutedData, feeBps uint64) error {
	assetIn := common.HexToAddress(swap.AssetIn)
	assetOut := common.HexToAddress(swap.AssetOut)
	token0, _, err := engine.SortTokens(assetIn, assetOut)
	if err != nil {
		return err
	}
	if a.Token0 == "" {
		if assetIn == token0 {
			a.Token0, a.Token1 = swap.AssetIn, swap.AssetOut
		} else {
			a.Token0, a.Token1 = swap.AssetOut, swap.AssetIn
		}
	}

	amountIn, err := parseBigInt(swap.AmountIn)
	if err != nil {
		return err
	}
	amountOut, err := parseBigInt(swap.AmountOut)
	if err != nil {
		return err
	}

	fee := feeFromAmount(amountIn, feeBps)
	if assetIn == token0 {
		a.Volume0.Add(a.Volume0, amountIn)
		a.Volume1.Add(a.Volume1, amountOut)
		a.Fee0.Add(a.Fee0, fee)
	} else {
		a.Volume1.Add(a.Volume1, amountIn)
		a.Volume0.Add(a.Volume0, amountOut)
		a.Fee1.Add(a.Fee1, fee)
	}

	a.SwapCount++
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, errInvalidAmount(value)
	}
	return parsed, nil
}

func feeFromAmount(amountIn *big.Int, feeBps uint64) *big.Int {
	if amountIn == nil || feeBps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Set(amountIn)
	fee.Mul(fee, new(big.Int).SetUint64(feeBps))
	fee.Div(fee, big.NewInt(10_000))
	return fee
}
