package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Logger writes leveled messages. Warnings and errors are colored.
type Logger struct {
	mu      sync.Mutex
	out     *log.Logger
	verbose bool
}

var std = New(os.Stderr, false)

// New creates a logger writing to w
func New(w io.Writer, verbose bool) *Logger {
	return &Logger{out: log.New(w, "", log.LstdFlags), verbose: verbose}
}

// Default returns the process-wide logger used by main
func Default() *Logger {
	return std
}

// Discard returns a logger that drops everything (handy in tests)
func Discard() *Logger {
	return New(io.Discard, false)
}

func (l *Logger) SetVerbose(v bool) {
	l.mu.Lock()
	l.verbose = v
	l.mu.Unlock()
}

func (l *Logger) Verbose() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.verbose
}

// Creates a standard log (use it for nonharmful and useful informations)
func (l *Logger) Log(format string, a ...interface{}) {
	l.out.Printf(format, a...)
}

// Logs if verbose flag is true
func (l *Logger) LogV(format string, a ...interface{}) {
	if l.Verbose() {
		l.Log(format, a...)
	}
}

// Sends a warn (use it for pottential problem)
func (l *Logger) Warn(format string, a ...interface{}) {
	l.colored(color.FgYellow, "[WARN]: "+format, a...)
}

// Sends an error (use it to inform about a real problem with a system but with no need to stop the service)
func (l *Logger) Err(format string, a ...interface{}) {
	l.colored(color.FgHiRed, "[ERR]: "+format, a...)
}

// SWarn is Warn scoped to the operation that raised it
func (l *Logger) SWarn(scope, format string, a ...interface{}) {
	l.Warn(fmt.Sprintf("%s: %s", scope, format), a...)
}

// SErr is Err scoped to the operation that raised it
func (l *Logger) SErr(scope, format string, a ...interface{}) {
	l.Err(fmt.Sprintf("%s: %s", scope, format), a...)
}

// We are fucked
func (l *Logger) Fatal(format string, a ...interface{}) {
	l.colored(color.FgRed, "[FATAL]: "+format, a...)
	os.Exit(1)
}

func (l *Logger) colored(attr color.Attribute, format string, a ...interface{}) {
	c := color.New(attr)
	l.out.Print(c.Sprintf(format, a...))
}

// Package-level shortcuts on the default logger.

func Log(format string, a ...interface{})   { std.Log(format, a...) }
func LogV(format string, a ...interface{})  { std.LogV(format, a...) }
func Warn(format string, a ...interface{})  { std.Warn(format, a...) }
func Err(format string, a ...interface{})   { std.Err(format, a...) }
func Fatal(format string, a ...interface{}) { std.Fatal(format, a...) }
