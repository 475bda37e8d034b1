package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestObservedLoggerRecordsFields(t *testing.T) {
	logger, logs := NewObserved(LevelDebug)
	child := logger.With(String("component", "test"))

	child.Warn("property skipped",
		String("property", "Scale"),
		Int("count", 2),
		Error(errors.New("boom")))

	entries := logs.FilterMessage("property skipped").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "test", fields["component"])
	assert.Equal(t, "Scale", fields["property"])
	assert.EqualValues(t, 2, fields["count"])
	assert.Equal(t, "boom", fields["error"])
}

func TestSetLevelFiltersEntries(t *testing.T) {
	logger, logs := NewObserved(LevelDebug)
	logger.SetLevel(LevelError)
	assert.Equal(t, LevelError, logger.GetLevel())

	logger.Info("dropped")
	logger.Log(LevelWarn, "dropped too")
	logger.Error("kept")

	assert.Equal(t, 1, logs.Len())
}

func TestNilErrorFieldIsSkipped(t *testing.T) {
	logger, logs := NewObserved(LevelDebug)
	logger.Info("no error", Error(nil))
	require.Equal(t, 1, logs.Len())
	_, ok := logs.All()[0].ContextMap()["error"]
	assert.False(t, ok)
}
