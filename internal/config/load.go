package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

func LoadConfig(ctx context.Context) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.MatchParams().Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEvaluatorEnv loads only the evaluator section.
func LoadEvaluatorEnv(ctx context.Context) (*EvaluatorEnvConfig, error) {
	var cfg EvaluatorEnvConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("process evaluator environment: %w", err)
	}
	if err := cfg.MatchParams().Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
