// Package api exposes the pool engine operations over HTTP.
package api

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"liquidityEngine/internal/engine"
)

// Handler serves the pool engine endpoints.
type Handler struct {
	engine *engine.Engine
	logger *zap.Logger
}

func NewHandler(eng *engine.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: eng, logger: logger}
}

// ProvisionRequest is the body for adding liquidity.
type ProvisionRequest struct {
	Provider  string `json:"provider"`
	AssetA    string `json:"asset_a"`
	AssetB    string `json:"asset_b"`
	DesiredA  string `json:"desired_a"`
	DesiredB  string `json:"desired_b"`
	MinA      string `json:"min_a"`
	MinB      string `json:"min_b"`
	Recipient string `json:"recipient"`
	Deadline  int64  `json:"deadline"`
}

// ProvisionResponse reports the executed deposit.
type ProvisionResponse struct {
	AmountA string `json:"amount_a"`
	AmountB string `json:"amount_b"`
	Minted  string `json:"minted"`
}

func (h *Handler) Provision(c fiber.Ctx) error {
	var req ProvisionRequest
	if err := c.Bind().Body(&req); err != nil {
		h.logger.Debug("bind provision body", zap.Error(err))
		return ErrInvalidBody
	}

	provider, err := parseAddress("provider", req.Provider)
	if err != nil {
		return err
	}
	assetA, err := parseAddress("asset_a", req.AssetA)
	if err != nil {
		return err
	}
	assetB, err := parseAddress("asset_b", req.AssetB)
	if err != nil {
		return err
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		return err
	}
	desiredA, err := parsePositiveAmount("desired_a", req.DesiredA)
	if err != nil {
		return err
	}
	desiredB, err := parsePositiveAmount("desired_b", req.DesiredB)
	if err != nil {
		return err
	}
	minA, err := parseFloorAmount("min_a", req.MinA)
	if err != nil {
		return err
	}
	minB, err := parseFloorAmount("min_b", req.MinB)
	if err != nil {
		return err
	}

	result, err := h.engine.ProvisionLiquidity(engine.ProvisionParams{
		Provider:  provider,
		AssetA:    assetA,
		AssetB:    assetB,
		DesiredA:  desiredA,
		DesiredB:  desiredB,
		MinA:      minA,
		MinB:      minB,
		Recipient: recipient,
		Deadline:  req.Deadline,
	})
	if err != nil {
		return mapEngineError(err)
	}

	return c.JSON(ProvisionResponse{
		AmountA: result.AmountA.String(),
		AmountB: result.AmountB.String(),
		Minted:  result.Minted.String(),
	})
}

// WithdrawRequest is the body for removing liquidity.
type WithdrawRequest struct {
	Provider  string `json:"provider"`
	AssetA    string `json:"asset_a"`
	AssetB    string `json:"asset_b"`
	Claim     string `json:"claim"`
	MinA      string `json:"min_a"`
	MinB      string `json:"min_b"`
	Recipient string `json:"recipient"`
	Deadline  int64  `json:"deadline"`
}

// WithdrawResponse reports the executed payout.
type WithdrawResponse struct {
	AmountA string `json:"amount_a"`
	AmountB string `json:"amount_b"`
}

func (h *Handler) Withdraw(c fiber.Ctx) error {
	var req WithdrawRequest
	if err := c.Bind().Body(&req); err != nil {
		h.logger.Debug("bind withdraw body", zap.Error(err))
		return ErrInvalidBody
	}

	provider, err := parseAddress("provider", req.Provider)
	if err != nil {
		return err
	}
	assetA, err := parseAddress("asset_a", req.AssetA)
	if err != nil {
		return err
	}
	assetB, err := parseAddress("asset_b", req.AssetB)
	if err != nil {
		return err
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		return err
	}
	claim, err := parsePositiveAmount("claim", req.Claim)
	if err != nil {
		return err
	}
	minA, err := parseFloorAmount("min_a", req.MinA)
	if err != nil {
		return err
	}
	minB, err := parseFloorAmount("min_b", req.MinB)
	if err != nil {
		return err
	}

	result, err := h.engine.WithdrawLiquidity(engine.WithdrawParams{
		Provider:  provider,
		AssetA:    assetA,
		AssetB:    assetB,
		Claim:     claim,
		MinA:      minA,
		MinB:      minB,
		Recipient: recipient,
		Deadline:  req.Deadline,
	})
	if err != nil {
		return mapEngineError(err)
	}

	return c.JSON(WithdrawResponse{
		AmountA: result.AmountA.String(),
		AmountB: result.AmountB.String(),
	})
}

// SwapRequest is the body for an exact-input swap.
type SwapRequest struct {
	Caller       string   `json:"caller"`
	Path         []string `json:"path"`
	AmountIn     string   `json:"amount_in"`
	AmountOutMin string   `json:"amount_out_min"`
	Recipient    string   `json:"recipient"`
	Deadline     int64    `json:"deadline"`
}

// SwapResponse reports the executed amounts in path order.
type SwapResponse struct {
	Amounts []string `json:"amounts"`
}

func (h *Handler) Swap(c fiber.Ctx) error {
	var req SwapRequest
	if err := c.Bind().Body(&req); err != nil {
		h.logger.Debug("bind swap body", zap.Error(err))
		return ErrInvalidBody
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		return err
	}
	path := make([]common.Address, 0, len(req.Path))
	for _, hop := range req.Path {
		addr, err := parseAddress("path", hop)
		if err != nil {
			return err
		}
		path = append(path, addr)
	}
	amountIn, err := parsePositiveAmount("amount_in", req.AmountIn)
	if err != nil {
		return err
	}
	amountOutMin, err := parseFloorAmount("amount_out_min", req.AmountOutMin)
	if err != nil {
		return err
	}

	result, err := h.engine.SwapExactIn(engine.SwapParams{
		Caller:       caller,
		Path:         path,
		AmountIn:     amountIn,
		AmountOutMin: amountOutMin,
		Recipient:    recipient,
		Deadline:     req.Deadline,
	})
	if err != nil {
		return mapEngineError(err)
	}

	amounts := make([]string, 0, len(result.Amounts))
	for _, amount := range result.Amounts {
		amounts = append(amounts, amount.String())
	}
	return c.JSON(SwapResponse{Amounts: amounts})
}

// PriceRequest carries the spot price query parameters.
type PriceRequest struct {
	AssetA string `query:"asset_a"`
	AssetB string `query:"asset_b"`
}

// PriceResponse reports the scaled spot price.
type PriceResponse struct {
	Price string `json:"price"`
	Scale string `json:"scale"`
}

func (h *Handler) SpotPrice(c fiber.Ctx) error {
	var req PriceRequest
	if err := c.Bind().Query(&req); err != nil {
		h.logger.Debug("bind price query", zap.Error(err))
		return ErrInvalidQueryParameters
	}

	assetA, err := parseAddress("asset_a", req.AssetA)
	if err != nil {
		return err
	}
	assetB, err := parseAddress("asset_b", req.AssetB)
	if err != nil {
		return err
	}

	price, err := h.engine.SpotPrice(assetA, assetB)
	if err != nil {
		return mapEngineError(err)
	}

	return c.JSON(PriceResponse{Price: price.String(), Scale: engine.Scale.String()})
}

// QuoteRequest carries the quote query parameters.
type QuoteRequest struct {
	AmountIn   string `query:"amount_in"`
	ReserveIn  string `query:"reserve_in"`
	ReserveOut string `query:"reserve_out"`
}

// QuoteResponse reports the no-fee constant-product output.
type QuoteResponse struct {
	AmountOut string `json:"amount_out"`
}

func (h *Handler) Quote(c fiber.Ctx) error {
	var req QuoteRequest
	if err := c.Bind().Query(&req); err != nil {
		h.logger.Debug("bind quote query", zap.Error(err))
		return ErrInvalidQueryParameters
	}

	amountIn, err := parseFloorAmount("amount_in", req.AmountIn)
	if err != nil {
		return err
	}
	reserveIn, err := parseFloorAmount("reserve_in", req.ReserveIn)
	if err != nil {
		return err
	}
	reserveOut, err := parseFloorAmount("reserve_out", req.ReserveOut)
	if err != nil {
		return err
	}

	amountOut, err := engine.QuoteOutput(amountIn, reserveIn, reserveOut)
	if err != nil {
		return mapEngineError(err)
	}

	return c.JSON(QuoteResponse{AmountOut: amountOut.String()})
}

func parseAddress(field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, NewAddressRequired(field)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, NewInvalidAddress(field)
	}
	return common.HexToAddress(value), nil
}

// parsePositiveAmount parses a required base-10 amount that must be > 0.
func parsePositiveAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, NewInvalidAmount(field)
	}
	return amount, nil
}

// parseFloorAmount parses an optional base-10 amount that must be >= 0;
// empty means zero.
func parseFloorAmount(field, value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, NewInvalidAmount(field)
	}
	return amount, nil
}
