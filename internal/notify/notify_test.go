// Package notify tests cover ordering, ring overflow and log mirroring of
// the notification feed.
package notify

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFeed(t *testing.T) {
	t.Run("empty feed", func(t *testing.T) {
		f := NewFeed(nil, nil, 3)

		assert.Empty(t, f.Recent())
		_, ok := f.Last()
		assert.False(t, ok)
	})

	t.Run("keeps order and stamps time", func(t *testing.T) {
		clk := clock.NewMock()
		clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
		f := NewFeed(nil, clk, 3)

		f.Notify(LevelSuccess, "Selected: USA")
		f.Notify(LevelWarning, "No results to export")

		recent := f.Recent()
		require.Len(t, recent, 2)
		assert.Equal(t, "Selected: USA", recent[0].Message)
		assert.Equal(t, LevelWarning, recent[1].Level)
		assert.Equal(t, uint64(2), recent[1].Seq)
		assert.Equal(t, clk.Now().UTC(), recent[0].Time)
	})

	t.Run("drops the oldest when full", func(t *testing.T) {
		f := NewFeed(nil, nil, 2)

		f.Notify(LevelInfo, "one")
		f.Notify(LevelInfo, "two")
		f.Notify(LevelInfo, "three")

		recent := f.Recent()
		require.Len(t, recent, 2)
		assert.Equal(t, "two", recent[0].Message)
		assert.Equal(t, "three", recent[1].Message)

		last, ok := f.Last()
		require.True(t, ok)
		assert.Equal(t, "three", last.Message)
	})

	t.Run("since filters by sequence", func(t *testing.T) {
		f := NewFeed(nil, nil, 5)
		f.Notify(LevelInfo, "one")
		f.Notify(LevelInfo, "two")

		since := f.Since(1)
		require.Len(t, since, 1)
		assert.Equal(t, "two", since[0].Message)
	})

	t.Run("mirrors to the logger by level", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		f := NewFeed(zap.New(core), nil, 5)

		f.Notify(LevelError, "RCA analysis failed")
		f.Notify(LevelSuccess, "Analysis reset")

		entries := logs.All()
		require.Len(t, entries, 2)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "RCA analysis failed", entries[0].Message)
		assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	})
}
