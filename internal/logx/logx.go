// Package logx is a small leveled logger matching the terse
// log.T/log.D/log.I/log.W/log.E/log.F convention this relay's Go lineage
// uses, with colorized level prefixes and a lazy trace/debug variant that
// avoids formatting cost when the level is disabled.
package logx

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

// Level is a logging verbosity level, ordered from least to most verbose.
type Level int32

const (
	Fatal Level = iota
	Error
	Warn
	Info
	Debug
	Trace
)

var names = map[string]Level{
	"fatal": Fatal,
	"error": Error,
	"warn":  Warn,
	"info":  Info,
	"debug": Debug,
	"trace": Trace,
}

var current atomic.Int32

func init() { current.Store(int32(Info)) }

// SetLevel configures the global log level from a name such as "info" or
// "trace". Unrecognized names leave the level unchanged.
func SetLevel(name string) {
	if lv, ok := names[strings.ToLower(strings.TrimSpace(name))]; ok {
		current.Store(int32(lv))
	}
}

func enabled(l Level) bool { return l <= Level(current.Load()) }

// Logger writes formatted or lazily-computed messages at a fixed level.
type Logger struct {
	level  Level
	name   string
	colour *color.Color
}

var (
	F = &Logger{level: Fatal, name: "FTL", colour: color.New(color.FgHiRed, color.Bold)}
	E = &Logger{level: Error, name: "ERR", colour: color.New(color.FgRed)}
	W = &Logger{level: Warn, name: "WRN", colour: color.New(color.FgYellow)}
	I = &Logger{level: Info, name: "INF", colour: color.New(color.FgGreen)}
	D = &Logger{level: Debug, name: "DBG", colour: color.New(color.FgCyan)}
	T = &Logger{level: Trace, name: "TRC", colour: color.New(color.FgMagenta)}
)

func (l *Logger) write(msg string) {
	ts := time.Now().Format("15:04:05.000")
	prefix := l.colour.Sprintf("[%s]", l.name)
	fmt.Fprintf(os.Stderr, "%s %s %s\n", ts, prefix, msg)
	if l.level == Fatal {
		os.Exit(1)
	}
}

// F formats a message at this logger's level, skipping work entirely if the
// level is currently disabled.
func (l *Logger) F(format string, args ...any) {
	if !enabled(l.level) {
		return
	}
	l.write(fmt.Sprintf(format, args...))
}

// C writes a message produced by a closure, only invoking the closure when
// the level is enabled — for expensive-to-build trace/debug messages.
func (l *Logger) C(build func() string) {
	if !enabled(l.level) {
		return
	}
	l.write(build())
}
