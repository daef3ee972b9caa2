package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/segeval/internal/config"
	"github.com/tensorplex-labs/segeval/internal/maskio"
	"github.com/tensorplex-labs/segeval/internal/report"
	"github.com/tensorplex-labs/segeval/internal/scoring"
	"github.com/tensorplex-labs/segeval/internal/store"
	"github.com/tensorplex-labs/segeval/internal/utils/logger"
	"github.com/tensorplex-labs/segeval/pkg/gradeapi"
)

var (
	optimalDir = flag.String("optimal", "", "folder of reference masks (overrides OPTIMAL_DIR)")
	studentDir = flag.String("student", "", "folder of candidate masks (overrides STUDENT_DIR)")
	csvPath    = flag.String("csv", "", "write per-candidate scores to this CSV file")
	jsonPath   = flag.String("json", "", "write a JSON summary, zstd compressed when the name ends in .zst")
	plot       = flag.Bool("plot", false, "print a terminal bar chart of candidate scores")
	remote     = flag.String("remote", "", "grade on a remote grading API at this base URL instead of locally")
)

func main() {
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}
	applyFlags(&cfg.EvaluatorEnvConfig)

	params := cfg.MatchParams()
	scorer, err := scoring.NewPairScorer(scoring.WithMatchParams(params))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid match parameters")
	}
	evaluator := scoring.NewBatchEvaluator(scorer, scoring.WithWorkers(cfg.Workers))

	references, err := maskio.LoadFolder(cfg.OptimalDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load optimal segmentations")
	}
	candidates, err := maskio.LoadFolder(cfg.StudentDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load student segmentations")
	}

	var result *scoring.EvaluationResult
	if *remote != "" {
		result, err = evaluateRemote(ctx, *remote, params, candidates, references)
	} else {
		result, err = evaluator.Evaluate(ctx, candidates, references)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("evaluation failed")
	}

	if err := report.WriteConsole(os.Stdout, result); err != nil {
		log.Fatal().Err(err).Msg("failed to write scores")
	}
	if *plot {
		report.PlotCandidateScores(os.Stdout, result, "Candidate scores")
	}

	if cfg.ReportCSV != "" {
		if err := report.WriteCSV(cfg.ReportCSV, result); err != nil {
			log.Fatal().Err(err).Msg("failed to write CSV report")
		}
		log.Info().Str("path", cfg.ReportCSV).Msg("CSV report written")
	}
	if cfg.ReportJSON != "" {
		if err := report.WriteJSON(cfg.ReportJSON, report.NewSummary(result, params)); err != nil {
			log.Fatal().Err(err).Msg("failed to write JSON report")
		}
		log.Info().Str("path", cfg.ReportJSON).Msg("JSON report written")
	}

	if cfg.StoreEnvConfig.Enabled() && *remote == "" {
		recordRun(ctx, &cfg.StoreEnvConfig, store.NewRun(result, params, cfg.OptimalDir, cfg.StudentDir, len(references)))
	}
}

// evaluateRemote sends both mask sets to a grading API. The remote server
// records the run itself when it has a results database.
func evaluateRemote(
	ctx context.Context,
	baseURL string,
	params scoring.MatchParams,
	candidates, references []scoring.IntensityImage,
) (*scoring.EvaluationResult, error) {
	client, err := gradeapi.NewClient(&gradeapi.ClientConfig{
		BaseURL:         baseURL,
		RetryMax:        gradeapi.DefaultClientRetryMax,
		ZstdCompression: true,
	})
	if err != nil {
		return nil, err
	}
	defer client.Close()

	req := &gradeapi.EvaluateRequest{
		Candidates: make([]gradeapi.MaskPayload, len(candidates)),
		References: make([]gradeapi.MaskPayload, len(references)),
		Params: &gradeapi.ParamsPayload{
			ColorValueSlackRange:        &params.ColorValueSlackRange,
			BlackValueThreshold:         &params.BlackValueThreshold,
			PixelRangeCheck:             &params.PixelRangeCheck,
			CheckEightSurroundingPixels: &params.CheckEightSurroundingPixels,
		},
	}
	for i, img := range candidates {
		req.Candidates[i] = gradeapi.MaskPayloadFromImage(img)
	}
	for i, img := range references {
		req.References[i] = gradeapi.MaskPayloadFromImage(img)
	}

	resp, err := client.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Info().Str("remote", baseURL).Str("run_id", resp.RunID).Msg("Remote evaluation finished")
	return resp.Result(), nil
}

func applyFlags(cfg *config.EvaluatorEnvConfig) {
	if *optimalDir != "" {
		cfg.OptimalDir = *optimalDir
	}
	if *studentDir != "" {
		cfg.StudentDir = *studentDir
	}
	if *csvPath != "" {
		cfg.ReportCSV = *csvPath
	}
	if *jsonPath != "" {
		cfg.ReportJSON = *jsonPath
	}
}

// recordRun is best effort, the scores are already printed.
func recordRun(ctx context.Context, cfg *config.StoreEnvConfig, run store.Run) {
	db, err := store.Open(ctx, store.Driver(cfg.Driver), cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("failed to open results database, run not recorded")
		return
	}
	defer db.Close()

	id, err := store.NewSQLStore(db).SaveRun(ctx, run)
	if err != nil {
		log.Error().Err(err).Msg("failed to record run")
		return
	}
	log.Info().Str("run_id", id).Msg("Run recorded")
}
