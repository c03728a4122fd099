package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		enabled       zap.AtomicLevel
	}{
		{"debug", "json", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"warn", "console", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"info", "", zap.NewAtomicLevelAt(zap.InfoLevel)},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled.Level()))
			assert.False(t, logger.Core().Enabled(tt.enabled.Level()-1))
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New("chatty", "json")
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New("info", "xml")
	assert.ErrorContains(t, err, "invalid log format")
}
