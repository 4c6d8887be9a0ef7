package api

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"liquidityEngine/internal/engine"
)

// Server wires the pool engine handlers into a fiber application.
type Server struct {
	app    *fiber.App
	logger *zap.Logger
}

func NewServer(eng *engine.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := fiber.New()
	handler := NewHandler(eng, logger)

	app.Post("/v1/liquidity/provision", handler.Provision)
	app.Post("/v1/liquidity/withdraw", handler.Withdraw)
	app.Post("/v1/swap", handler.Swap)
	app.Get("/v1/price", handler.SpotPrice)
	app.Get("/v1/quote", handler.Quote)

	return &Server{app: app, logger: logger}
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until the context is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		return s.app.ShutdownWithContext(context.Background())
	}
}
