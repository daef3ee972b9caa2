package gradeapi

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/tensorplex-labs/segeval/internal/scoring"
	"github.com/tensorplex-labs/segeval/internal/store"
)

const (
	// Server defaults
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8890
	DefaultBodyLimit  = 16 * 1024 * 1024 // 16MB

	HealthRoute   = "/health"
	EvaluateRoute = "/evaluate"
	ScoreRoute    = "/score"
)

// Server is the HTTP grading API
type Server struct {
	App       *fiber.App
	config    *ServerConfig
	evaluator *scoring.BatchEvaluator
	recorder  RunRecorder
}

type ServerConfig struct {
	Host      string
	Port      int
	BodyLimit int
}

// RunRecorder persists evaluations, store.SQLStore satisfies it
type RunRecorder interface {
	SaveRun(ctx context.Context, run store.Run) (string, error)
}

// StdResponse represents the standardized response structure
type StdResponse[T any] struct {
	Body  T       `json:"body"`
	Error *string `json:"error,omitempty"`
}

type MaskPayload struct {
	Name   string  `json:"name"`
	Pixels [][]int `json:"pixels"`
}

// ParamsPayload overrides the server's match params field by field.
type ParamsPayload struct {
	ColorValueSlackRange        *int  `json:"color_value_slack_range,omitempty"`
	BlackValueThreshold         *int  `json:"black_value_threshold,omitempty"`
	PixelRangeCheck             *int  `json:"pixel_range_check,omitempty"`
	CheckEightSurroundingPixels *bool `json:"check_eight_surrounding_pixels,omitempty"`
}

type EvaluateRequest struct {
	Candidates []MaskPayload  `json:"candidates"`
	References []MaskPayload  `json:"references"`
	Params     *ParamsPayload `json:"params,omitempty"`
}

type CandidateResult struct {
	Name                 string  `json:"name"`
	Score                float64 `json:"score"`
	BestReference        int     `json:"best_reference"`
	BestReferenceName    string  `json:"best_reference_name,omitempty"`
	ReferenceToCandidate float64 `json:"reference_to_candidate"`
	CandidateToReference float64 `json:"candidate_to_reference"`
}

type EvaluateResponse struct {
	RunID      string              `json:"run_id,omitempty"`
	Params     scoring.MatchParams `json:"params"`
	Candidates []CandidateResult   `json:"candidates"`
	Aggregate  float64             `json:"aggregate"`
}

type ScoreRequest struct {
	A      MaskPayload    `json:"a"`
	B      MaskPayload    `json:"b"`
	Params *ParamsPayload `json:"params,omitempty"`
}

type ScoreResponse struct {
	Score  float64             `json:"score"`
	Params scoring.MatchParams `json:"params"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
