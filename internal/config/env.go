// Package config defines environment configuration structs and loaders.
package config

import (
	"github.com/tensorplex-labs/segeval/internal/scoring"
)

type AppConfig struct {
	EvaluatorEnvConfig
	ServerEnvConfig
	StoreEnvConfig
	Environment string `env:"ENVIRONMENT, default=prod"`
}

// EvaluatorEnvConfig holds folder locations and match tolerances.
type EvaluatorEnvConfig struct {
	OptimalDir string `env:"OPTIMAL_DIR, default=Optimal_Segmentation_Files"`
	StudentDir string `env:"STUDENT_DIR, default=Student_Segmentation_Files"`

	ColorValueSlackRange        int  `env:"COLOR_VALUE_SLACK_RANGE, default=40"`
	BlackValueThreshold         int  `env:"BLACK_VALUE_THRESHOLD, default=100"`
	PixelRangeCheck             int  `env:"PIXEL_RANGE_CHECK, default=4"`
	CheckEightSurroundingPixels bool `env:"CHECK_EIGHT_SURROUNDING_PIXELS, default=true"`
	Workers                     int  `env:"EVALUATOR_WORKERS, default=0"`

	ReportCSV  string `env:"REPORT_CSV"`
	ReportJSON string `env:"REPORT_JSON"`
}

// MatchParams converts the tolerances for the scorer.
func (c *EvaluatorEnvConfig) MatchParams() scoring.MatchParams {
	return scoring.MatchParams{
		ColorValueSlackRange:        c.ColorValueSlackRange,
		BlackValueThreshold:         c.BlackValueThreshold,
		PixelRangeCheck:             c.PixelRangeCheck,
		CheckEightSurroundingPixels: c.CheckEightSurroundingPixels,
	}
}

// ServerEnvConfig configures the grading API.
type ServerEnvConfig struct {
	Host      string `env:"SERVER_HOST, default=0.0.0.0"`
	Port      int    `env:"SERVER_PORT, default=8890"`
	BodyLimit int    `env:"SERVER_BODY_LIMIT, default=16777216"`
}

// StoreEnvConfig configures the run history database. An empty DSN disables it.
type StoreEnvConfig struct {
	Driver string `env:"RESULTS_DB_DRIVER, default=sqlite"`
	DSN    string `env:"RESULTS_DB_DSN"`
}

func (c *StoreEnvConfig) Enabled() bool {
	return c.DSN != ""
}
