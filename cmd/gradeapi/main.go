package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/segeval/internal/config"
	"github.com/tensorplex-labs/segeval/internal/scoring"
	"github.com/tensorplex-labs/segeval/internal/store"
	"github.com/tensorplex-labs/segeval/internal/utils/logger"
	"github.com/tensorplex-labs/segeval/pkg/gradeapi"
)

func main() {
	logger.Init()
	log.Info().Msg("Starting grading API...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}

	scorer, err := scoring.NewPairScorer(scoring.WithMatchParams(cfg.MatchParams()))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid match parameters")
	}
	evaluator := scoring.NewBatchEvaluator(scorer, scoring.WithWorkers(cfg.Workers))

	var recorder gradeapi.RunRecorder
	if cfg.StoreEnvConfig.Enabled() {
		db, err := store.Open(ctx, store.Driver(cfg.Driver), cfg.DSN)
		if err != nil {
			log.Error().Err(err).Msg("failed to open results database, continuing without run history")
		} else {
			defer db.Close()
			recorder = store.NewSQLStore(db)
		}
	}

	server := gradeapi.NewServer(&gradeapi.ServerConfig{
		Host:      cfg.Host,
		Port:      cfg.Port,
		BodyLimit: cfg.BodyLimit,
	}, evaluator, recorder)

	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("grading API stopped with error")
	}
	log.Info().Msg("grading API stopped")
}
