package mlog

import (
	. "testing"

	"github.com/mediocregopher/mediocredis/mctx"
	"github.com/mediocregopher/mediocredis/mtest/massert"
)

func TestTruncate(t *T) {
	massert.Fatal(t, massert.All(
		massert.Equal("abc", Truncate("abc", 4)),
		massert.Equal("abc", Truncate("abc", 3)),
		massert.Equal("ab...", Truncate("abc", 2)),

	))
}

func TestLevelFromString(t *T) {
	massert.Fatal(t, massert.All(
		massert.Equal(DebugLevel, LevelFromString("debug")),
		massert.Equal(InfoLevel, LevelFromString("INFO")),
		massert.Equal(WarnLevel, LevelFromString("Warn")),
		massert.Equal(ErrorLevel, LevelFromString("error")),
		massert.Equal(FatalLevel, LevelFromString("fatal")),
		massert.Nil(LevelFromString("bogus")),

	))
}

func TestLogger(t *T) {
	var got []Message
	l := NewLogger()
	l.SetHandler(func(msg Message) error {
		got = append(got, msg)
		return nil
	})

	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")
	massert.Fatal(t, massert.Len(got, 3)) // Debug filtered by default max level

	got = got[:0]
	l.SetMaxLevel(DebugLevel)
	ctx := mctx.Annotated("k", "v")
	l.Info("info msg", ctx)
	massert.Fatal(t, massert.All(
		massert.Len(got, 1),
		massert.Equal("info msg", got[0].Description),
		massert.Equal(InfoLevel, got[0].Level),

	))
}
