package main

import (
	"testing"

	"github.com/codefionn/codebridge/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestLogLevelFor(t *testing.T) {
	assert.Equal(t, logger.LevelNone, logLevelFor("none", false))
	assert.Equal(t, logger.LevelInfo, logLevelFor("none", true))
	assert.Equal(t, logger.LevelDebug, logLevelFor("debug", true))
	assert.Equal(t, logger.LevelWarn, logLevelFor("warn", false))
}
