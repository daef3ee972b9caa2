package gradeapi

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/segeval/internal/scoring"
	"github.com/tensorplex-labs/segeval/internal/store"
)

const apiSource = "api"

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(createResponse(HealthResponse{Status: "ok"}, nil))
}

func (s *Server) handleEvaluate(c *fiber.Ctx) error {
	var req EvaluateRequest
	if err := sonic.Unmarshal(c.Body(), &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err))
	}

	scorer, err := s.scorerFor(req.Params)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	candidates, err := toImages(req.Candidates, "candidate")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	references, err := toImages(req.References, "reference")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	evaluator := scoring.NewBatchEvaluator(scorer, scoring.WithWorkers(s.evaluator.Workers))
	result, err := evaluator.Evaluate(c.UserContext(), candidates, references)
	if err != nil {
		return evaluationError(err)
	}

	resp := EvaluateResponse{
		Params:     scorer.Params,
		Candidates: make([]CandidateResult, len(result.Candidates)),
		Aggregate:  result.Aggregate,
	}
	for i, cs := range result.Candidates {
		resp.Candidates[i] = CandidateResult{
			Name:                 cs.Candidate,
			Score:                cs.Score,
			BestReference:        cs.BestReference,
			BestReferenceName:    cs.BestReferenceName,
			ReferenceToCandidate: cs.ReferenceToCandidate,
			CandidateToReference: cs.CandidateToReference,
		}
	}

	if s.recorder != nil {
		run := store.NewRun(result, scorer.Params, apiSource, apiSource, len(references))
		runID, err := s.recorder.SaveRun(c.UserContext(), run)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		resp.RunID = runID
	}

	log.Info().
		Str("run_id", resp.RunID).
		Int("candidates", len(candidates)).
		Int("references", len(references)).
		Float64("aggregate", resp.Aggregate).
		Msg("Evaluation served")

	return c.JSON(createResponse(resp, nil))
}

func (s *Server) handleScore(c *fiber.Ctx) error {
	var req ScoreRequest
	if err := sonic.Unmarshal(c.Body(), &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err))
	}

	scorer, err := s.scorerFor(req.Params)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	images, err := toImages([]MaskPayload{req.A, req.B}, "mask")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	score, err := scorer.Score(images[0], images[1])
	if err != nil {
		return evaluationError(err)
	}

	return c.JSON(createResponse(ScoreResponse{Score: score, Params: scorer.Params}, nil))
}

// scorerFor applies per-request overrides on top of the server's params.
func (s *Server) scorerFor(overrides *ParamsPayload) (*scoring.PairScorer, error) {
	params := s.evaluator.Scorer.Params
	if overrides != nil {
		if overrides.ColorValueSlackRange != nil {
			params.ColorValueSlackRange = *overrides.ColorValueSlackRange
		}
		if overrides.BlackValueThreshold != nil {
			params.BlackValueThreshold = *overrides.BlackValueThreshold
		}
		if overrides.PixelRangeCheck != nil {
			params.PixelRangeCheck = *overrides.PixelRangeCheck
		}
		if overrides.CheckEightSurroundingPixels != nil {
			params.CheckEightSurroundingPixels = *overrides.CheckEightSurroundingPixels
		}
	}
	return scoring.NewPairScorer(scoring.WithMatchParams(params))
}

func toImages(masks []MaskPayload, prefix string) ([]scoring.IntensityImage, error) {
	images := make([]scoring.IntensityImage, len(masks))
	for i, m := range masks {
		name := m.Name
		if name == "" {
			name = fmt.Sprintf("%s%d", prefix, i+1)
		}
		img, err := scoring.NewIntensityImage(name, m.Pixels)
		if err != nil {
			return nil, err
		}
		images[i] = img
	}
	return images, nil
}

func evaluationError(err error) error {
	var shapeErr *scoring.ShapeMismatchError
	switch {
	case errors.Is(err, scoring.ErrNoCandidates):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &shapeErr):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}
