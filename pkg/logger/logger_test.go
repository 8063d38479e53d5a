package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name      string
		json      bool
		verbose   bool
		wantDebug bool
	}{
		{"console", false, false, false},
		{"console verbose", false, true, true},
		{"json", true, false, false},
		{"json verbose", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.json, tt.verbose)
			require.NoError(t, err)
			require.NotNil(t, l)

			assert.Equal(t, tt.wantDebug, l.Desugar().Core().Enabled(zapcore.DebugLevel))
			assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
		})
	}
}

func TestNop(t *testing.T) {
	assert.False(t, Nop().Desugar().Core().Enabled(zapcore.ErrorLevel))
}
