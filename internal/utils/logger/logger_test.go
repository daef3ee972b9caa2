package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevelForEnvironment(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, LevelForEnvironment("dev"))
	assert.Equal(t, zerolog.TraceLevel, LevelForEnvironment("TEST"))
	assert.Equal(t, zerolog.InfoLevel, LevelForEnvironment("prod"))
	assert.Equal(t, zerolog.InfoLevel, LevelForEnvironment("staging"))
}
