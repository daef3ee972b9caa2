package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/segeval/internal/scoring"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, scoring.DefaultMatchParams(), cfg.MatchParams())
	assert.Equal(t, "Optimal_Segmentation_Files", cfg.OptimalDir)
	assert.Equal(t, "Student_Segmentation_Files", cfg.StudentDir)
	assert.Equal(t, 8890, cfg.Port)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.False(t, cfg.StoreEnvConfig.Enabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("COLOR_VALUE_SLACK_RANGE", "10")
	t.Setenv("BLACK_VALUE_THRESHOLD", "128")
	t.Setenv("PIXEL_RANGE_CHECK", "2")
	t.Setenv("CHECK_EIGHT_SURROUNDING_PIXELS", "false")
	t.Setenv("STUDENT_DIR", "/tmp/students")
	t.Setenv("RESULTS_DB_DSN", "file:runs.db")

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, scoring.MatchParams{
		ColorValueSlackRange:        10,
		BlackValueThreshold:         128,
		PixelRangeCheck:             2,
		CheckEightSurroundingPixels: false,
	}, cfg.MatchParams())
	assert.Equal(t, "/tmp/students", cfg.StudentDir)
	assert.True(t, cfg.StoreEnvConfig.Enabled())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Run("negative radius", func(t *testing.T) {
		t.Setenv("PIXEL_RANGE_CHECK", "-1")
		_, err := LoadEvaluatorEnv(context.Background())
		assert.ErrorIs(t, err, scoring.ErrInvalidParams)
	})

	t.Run("not a number", func(t *testing.T) {
		t.Setenv("COLOR_VALUE_SLACK_RANGE", "wide")
		_, err := LoadConfig(context.Background())
		assert.Error(t, err)
	})
}
