// Package mlog is a generic logging library. The log methods come in
// different severities: Debug, Info, Warn, Error, and Fatal.
//
// The log methods take in a message string and zero or more Contexts. Each
// Context may be loaded with annotations (see the mctx package) which will be
// included in the log entry as key/value pairs.
package mlog

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mediocregopher/mediocredis/mctx"
)

// Truncate is a helper function to truncate a string to a given size. It will
// add 3 trailing elipses, so the returned string will be at most size+3
// characters long.
func Truncate(s string, size int) string {
	if len(s) <= size {
		return s
	}
	return s[:size] + "..."
}

// Level describes the severity of a particular log message, and can be
// compared to the severity of any other Level.
type Level interface {
	// String gives the string form of the level, e.g. "INFO" or "ERROR".
	String() string

	// Int gives an integer indicator of the severity of the level, with a
	// lower number being more severe. A Level with a negative Int indicates a
	// fatal message; logging one will cause the process to exit.
	Int() int
}

type level struct {
	s string
	i int
}

func (l level) String() string { return l.s }
func (l level) Int() int       { return l.i }

// All pre-defined log levels.
var (
	DebugLevel Level = level{s: "DEBUG", i: 40}
	InfoLevel  Level = level{s: "INFO", i: 30}
	WarnLevel  Level = level{s: "WARN", i: 20}
	ErrorLevel Level = level{s: "ERROR", i: 10}
	FatalLevel Level = level{s: "FATAL", i: -1}
)

// LevelFromString takes a string describing one of the pre-defined Levels
// (e.g. "debug" or "INFO") and returns the corresponding Level instance, or
// nil if the string doesn't describe any of them.
func LevelFromString(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return nil
	}
}

// Message describes a message to be logged.
type Message struct {
	Level
	Description string
	Contexts    []context.Context
}

// Handler is a function which processes Messages in some way, e.g. by
// formatting and writing them out to a file or network connection.
//
// NOTE that Logger does not handle thread-safety around calls to a Handler;
// that must be done by the Handler itself if necessary.
type Handler func(Message) error

// DefaultHandler formats a Message and writes it to os.Stderr. It is used by
// NewLogger unless overridden with SetHandler.
func DefaultHandler(msg Message) error {
	var err error
	write := func(s string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(os.Stderr, s, args...)
		}
	}

	write("~ %s -- %s", msg.Level.String(), msg.Description)
	for _, ctx := range msg.Contexts {
		if ctx == nil {
			continue
		}
		for _, kv := range mctx.Annotations(ctx).StringSlice(true) {
			write(" %s=%s", kv[0], strconv.QuoteToGraphic(kv[1]))
		}
	}
	write("\n")
	return err
}

// Logger directs Messages to an internal Handler. All methods are
// thread-safe.
type Logger struct {
	l        sync.RWMutex
	handler  Handler
	maxLevel int
}

// NewLogger initializes and returns a new Logger which uses DefaultHandler and
// has its max level set to InfoLevel.
func NewLogger() *Logger {
	return &Logger{
		handler:  DefaultHandler,
		maxLevel: InfoLevel.Int(),
	}
}

// Clone returns a copy of the Logger. The copy may have SetHandler/
// SetMaxLevel called on it without affecting the original.
func (l *Logger) Clone() *Logger {
	l.l.RLock()
	defer l.l.RUnlock()
	return &Logger{
		handler:  l.handler,
		maxLevel: l.maxLevel,
	}
}

// Handler returns the Handler currently being used by the Logger.
func (l *Logger) Handler() Handler {
	l.l.RLock()
	defer l.l.RUnlock()
	return l.handler
}

// SetHandler sets the Handler which the Logger will use for all subsequent
// Log calls.
func (l *Logger) SetHandler(h Handler) {
	l.l.Lock()
	defer l.l.Unlock()
	l.handler = h
}

// SetMaxLevel sets the maximum (i.e. least severe) Level which the Logger
// will output a log for. Messages whose Level has a higher Int value than
// this one's will be discarded.
func (l *Logger) SetMaxLevel(lvl Level) {
	l.l.Lock()
	defer l.l.Unlock()
	l.maxLevel = lvl.Int()
}

// Log manually logs a Message of some custom defined Level. If the Level is
// fatal (Int() < 0) then this call never returns, and the process exits with
// os.Exit(1) after the Message is handled.
func (l *Logger) Log(msg Message) {
	l.l.RLock()
	maxLevel, handler := l.maxLevel, l.handler
	l.l.RUnlock()

	fatal := msg.Level.Int() < 0
	if !fatal && maxLevel < msg.Level.Int() {
		return
	}

	if err := handler(msg); err != nil {
		fmt.Fprintf(os.Stderr, "~ ERROR -- mlog: handler returned error: %s\n", err)
	}

	if fatal {
		os.Exit(1)
	}
}

func mkMsg(lvl Level, descr string, ctxs []context.Context) Message {
	return Message{Level: lvl, Description: descr, Contexts: ctxs}
}

// Debug logs a DebugLevel message.
func (l *Logger) Debug(descr string, ctxs ...context.Context) {
	l.Log(mkMsg(DebugLevel, descr, ctxs))
}

// Info logs an InfoLevel message.
func (l *Logger) Info(descr string, ctxs ...context.Context) {
	l.Log(mkMsg(InfoLevel, descr, ctxs))
}

// Warn logs a WarnLevel message.
func (l *Logger) Warn(descr string, ctxs ...context.Context) {
	l.Log(mkMsg(WarnLevel, descr, ctxs))
}

// Error logs an ErrorLevel message.
func (l *Logger) Error(descr string, ctxs ...context.Context) {
	l.Log(mkMsg(ErrorLevel, descr, ctxs))
}

// Fatal logs a FatalLevel message. This will never return; the process exits
// with os.Exit(1) once the message has been handled.
func (l *Logger) Fatal(descr string, ctxs ...context.Context) {
	l.Log(mkMsg(FatalLevel, descr, ctxs))
}
