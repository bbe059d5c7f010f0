package infrastructure

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Francouer/proto-watch/internal/domain"
	"github.com/fatih/color"
)

type ColorLogger struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool

	infoColor    *color.Color
	successColor *color.Color
	warningColor *color.Color
	errorColor   *color.Color
	debugColor   *color.Color
}

// NewColorLogger creates a new colorful logger writing to stderr
func NewColorLogger(verbose bool) *ColorLogger {
	return NewColorLoggerWithWriter(os.Stderr, verbose)
}

// NewColorLoggerWithWriter creates a colorful logger writing to out.
// Debug messages are dropped unless verbose is set.
func NewColorLoggerWithWriter(out io.Writer, verbose bool) *ColorLogger {
	return &ColorLogger{
		out:          out,
		verbose:      verbose,
		infoColor:    color.New(color.FgBlue, color.Bold),
		successColor: color.New(color.FgGreen, color.Bold),
		warningColor: color.New(color.FgYellow, color.Bold),
		errorColor:   color.New(color.FgRed, color.Bold),
		debugColor:   color.New(color.FgMagenta),
	}
}

var _ domain.Logger = (*ColorLogger)(nil)

// SetVerbose toggles debug output
func (l *ColorLogger) SetVerbose(verbose bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
}

func (l *ColorLogger) Info(msg string, args ...interface{}) {
	l.print(l.infoColor, "[INFO]", msg, args...)
}

func (l *ColorLogger) Success(msg string, args ...interface{}) {
	l.print(l.successColor, "[SUCCESS]", msg, args...)
}

func (l *ColorLogger) Warning(msg string, args ...interface{}) {
	l.print(l.warningColor, "[WARNING]", msg, args...)
}

func (l *ColorLogger) Error(msg string, args ...interface{}) {
	l.print(l.errorColor, "[ERROR]", msg, args...)
}

func (l *ColorLogger) Debug(msg string, args ...interface{}) {
	l.mu.Lock()
	verbose := l.verbose
	l.mu.Unlock()
	if !verbose {
		return
	}
	l.print(l.debugColor, "[DEBUG]", msg, args...)
}

// print serializes writes so parallel compiles don't interleave lines
func (l *ColorLogger) print(c *color.Color, level, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := c.Sprint(level)
	fmt.Fprintf(l.out, "%s %s\n", prefix, fmt.Sprintf(msg, args...))
}
