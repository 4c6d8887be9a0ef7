package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"liquidityEngine/internal/engine"
)

// ErrInvalidBody indicates that the request body could not be parsed into
// the expected structure.
var ErrInvalidBody = fiber.NewError(fiber.StatusBadRequest, "invalid request body")

// ErrInvalidQueryParameters indicates that the query string could not be
// parsed into the expected structure.
var ErrInvalidQueryParameters = fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")

// NewAddressRequired returns a 400 Bad Request for a missing address field.
func NewAddressRequired(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, field+" address is required")
}

// NewInvalidAddress returns a 400 Bad Request for an invalid address format.
func NewInvalidAddress(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+" address")
}

// NewInvalidAmount returns a 400 Bad Request for an unparseable amount field.
func NewInvalidAmount(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+" amount")
}

// mapEngineError translates engine failure conditions into HTTP errors. Every
// engine failure is a complete rollback, so all of them map to client errors
// except an unrecognized fault.
func mapEngineError(err error) error {
	switch {
	case errors.Is(err, engine.ErrExpired):
		return fiber.NewError(fiber.StatusBadRequest, "deadline expired")
	case errors.Is(err, engine.ErrIdenticalAssets):
		return fiber.NewError(fiber.StatusBadRequest, "assets must differ")
	case errors.Is(err, engine.ErrInsufficientAAmount):
		return fiber.NewError(fiber.StatusBadRequest, "amount for first asset below minimum")
	case errors.Is(err, engine.ErrInsufficientBAmount):
		return fiber.NewError(fiber.StatusBadRequest, "amount for second asset below minimum")
	case errors.Is(err, engine.ErrInsufficientLiquidity):
		return fiber.NewError(fiber.StatusBadRequest, "insufficient liquidity")
	case errors.Is(err, engine.ErrInsufficientInput):
		return fiber.NewError(fiber.StatusBadRequest, "input amount must be greater than zero")
	case errors.Is(err, engine.ErrInsufficientOutput):
		return fiber.NewError(fiber.StatusBadRequest, "output below minimum")
	case errors.Is(err, engine.ErrUnsupportedPath):
		return fiber.NewError(fiber.StatusBadRequest, "only direct two-asset paths are supported")
	case errors.Is(err, engine.ErrTransferFailed):
		return fiber.NewError(fiber.StatusBadRequest, "asset transfer rejected")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "operation failed")
	}
}
