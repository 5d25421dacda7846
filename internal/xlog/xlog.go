// Package xlog is a small leveled, structured logger used throughout
// this module in place of fmt.Println debugging, matching the
// key/value call convention ("msg", "k1", v1, "k2", v2, ...) common
// across the corpus this module was adapted from.
package xlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level orders log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCrit
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCrit:
		return "CRIT"
	default:
		return "?"
	}
}

func (l Level) color() *color.Color {
	switch l {
	case LevelDebug:
		return color.New(color.FgCyan)
	case LevelInfo:
		return color.New(color.FgGreen)
	case LevelWarn:
		return color.New(color.FgYellow)
	case LevelError:
		return color.New(color.FgRed)
	case LevelCrit:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New()
	}
}

// Logger writes leveled, key/value structured lines to an output
// stream, colourising the level tag when the stream is a terminal.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
	colorize bool
}

// Default is the package-level logger used by the top-level helper
// functions (Debug, Info, Warn, Error, Crit).
var Default = New(os.Stderr)

// New constructs a Logger writing to w, auto-detecting colour support
// when w wraps a terminal file descriptor.
func New(w io.Writer) *Logger {
	colorize := false
	if f, ok := w.(*os.File); ok {
		colorize = isatty.IsTerminal(f.Fd())
		if colorize {
			w = colorable.NewColorable(f)
		}
	}
	return &Logger{out: w, minLevel: LevelDebug, colorize: colorize}
}

// SetLevel changes the minimum level that will be emitted.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

func (l *Logger) log(level Level, msg string, kv ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.minLevel {
		return
	}

	tag := level.String()
	if l.colorize {
		tag = level.color().Sprint(tag)
	}

	fmt.Fprintf(l.out, "%s [%s] %s", time.Now().Format("15:04:05.000"), tag, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", kv[i], kv[i+1])
	}
	if level == LevelCrit {
		fmt.Fprintf(l.out, " caller=%v", stack.Caller(2))
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(LevelDebug, msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(LevelInfo, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(LevelWarn, msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(LevelError, msg, kv...) }
func (l *Logger) Crit(msg string, kv ...interface{})  { l.log(LevelCrit, msg, kv...) }

// Package-level convenience wrappers over Default.
func Debug(msg string, kv ...interface{}) { Default.Debug(msg, kv...) }
func Info(msg string, kv ...interface{})  { Default.Info(msg, kv...) }
func Warn(msg string, kv ...interface{})  { Default.Warn(msg, kv...) }
func Error(msg string, kv ...interface{}) { Default.Error(msg, kv...) }
func Crit(msg string, kv ...interface{})  { Default.Crit(msg, kv...) }
