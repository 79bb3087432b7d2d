package utilities

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestIDGeneratorProducesIncreasingIDs(t *testing.T) {
	g, err := NewIDGenerator(3)
	require.NoError(t, err)

	prev := g.Next()
	for i := 0; i < 1000; i++ {
		next := g.Next()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestNewIDGeneratorRejectsBadNode(t *testing.T) {
	_, err := NewIDGenerator(5000)
	assert.Error(t, err)
}

func TestIDGeneratorFromEnvFallsBack(t *testing.T) {
	t.Setenv("SNOWFLAKE_NODE", "not-a-number")
	g, err := IDGeneratorFromEnv()
	require.NoError(t, err)
	assert.NotZero(t, g.Next())
}

func TestNewKSUID(t *testing.T) {
	a, b := NewKSUID(), NewKSUID()
	assert.Len(t, a, 27)
	assert.NotEqual(t, a, b)
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, levelFromString("debug"))
	assert.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zapcore.InfoLevel, levelFromString("bogus"))
}

func TestInitWithRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "market.log")
	lg, err := Init(Config{Level: "info", File: path, MaxAge: 24 * time.Hour, Rotation: 24 * time.Hour})
	require.NoError(t, err)
	lg.Info("hello")
	_ = lg.Sync()

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	info, err := os.Stat(matches[0])
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
