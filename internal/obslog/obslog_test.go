package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuildWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.log")
	l, err := Build(Options{Level: "debug", ToFile: true, File: path, Format: "json"})
	require.NoError(t, err)
	l.Info("replay_done", zap.String("game_id", "g-1"), zap.Int("completed", 3))
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(raw)
	assert.True(t, strings.Contains(line, `"msg":"replay_done"`), line)
	assert.Contains(t, line, `"game_id":"g-1"`)
}

func TestBuildWithoutOutputsIsNop(t *testing.T) {
	l, err := Build(Options{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARNING"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestSetRestoresNop(t *testing.T) {
	Set(zap.NewExample())
	Set(nil)
	assert.False(t, L().Core().Enabled(zapcore.ErrorLevel))
}
