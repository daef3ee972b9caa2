// Package gradeapi exposes the mask evaluator over HTTP.
package gradeapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/segeval/internal/scoring"
)

const shutdownTimeout = 5 * time.Second

// NewServer creates the grading API. A nil evaluator uses the default match
// params, a nil recorder disables run history.
func NewServer(serverConfig *ServerConfig, evaluator *scoring.BatchEvaluator, recorder RunRecorder) *Server {
	if serverConfig == nil {
		serverConfig = &ServerConfig{
			Host:      DefaultServerHost,
			Port:      DefaultServerPort,
			BodyLimit: DefaultBodyLimit,
		}
	}
	if serverConfig.BodyLimit <= 0 {
		serverConfig.BodyLimit = DefaultBodyLimit
	}
	if evaluator == nil {
		evaluator = scoring.NewBatchEvaluator(nil)
	}

	log.Info().
		Any("serverConfig", serverConfig).
		Any("params", evaluator.Scorer.Params).
		Bool("history", recorder != nil).
		Msg("Server configuration loaded")

	app := fiber.New(fiber.Config{
		Prefork:               false,
		DisableStartupMessage: true,
		ErrorHandler:          fiberErrHandler,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		BodyLimit:             serverConfig.BodyLimit,
	})

	app.Use(recover.New()) // add panic recovery
	app.Use(ZstdMiddleware([]string{HealthRoute}))

	server := &Server{
		App:       app,
		config:    serverConfig,
		evaluator: evaluator,
		recorder:  recorder,
	}

	app.Get(HealthRoute, server.handleHealth)
	app.Post(EvaluateRoute, server.handleEvaluate)
	app.Post(ScoreRoute, server.handleScore)

	return server
}

// createResponse creates a StdResponse with the given body and error
func createResponse[T any](body T, err error) StdResponse[T] {
	if err != nil {
		errMsg := err.Error()
		return StdResponse[T]{
			Body:  body,
			Error: &errMsg,
		}
	}
	return StdResponse[T]{
		Body:  body,
		Error: nil,
	}
}

func fiberErrHandler(ctx *fiber.Ctx, err error) error {
	// Status code defaults to 500
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a *fiber.Error
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	log.Error().
		Err(err).
		Int("status_code", code).
		Str("path", ctx.Path()).
		Str("method", ctx.Method()).
		Msg("Fiber error handler triggered")

	return ctx.Status(code).JSON(createResponse(map[string]any{}, err))
}

// Start listens until ctx is cancelled, then shuts the app down.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Grading API listening")
		errCh <- s.App.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.App.ShutdownWithContext(shutdownCtx)
}
