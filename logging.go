package scenert

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Logger is what every renderer package logs through. Packages take one in their
// options and derive a prefixed child with Sub; a nil Logger means silence.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger writes "[prefix] LEVEL: message" lines with microsecond
// timestamps. Debug and info go to stdout; warnings and errors go to stderr so
// frame-loop failures stay visible when stdout is redirected.
type DefaultLogger struct {
	mu     *sync.Mutex
	debug  *bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

// NewDefaultLogger returns the root logger for a binary. The -debug flag and the
// config's debug key both end up in debug.
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		mu:     &sync.Mutex{},
		debug:  &debug,
		prefix: prefix,
		out:    log.New(os.Stdout, "", flags),
		err:    log.New(os.Stderr, "", flags),
	}
}

// WithPrefix returns a child logging under "parent/prefix", for example
// "meshrt/frame". Children share the parent's sinks and debug switch.
func (l *DefaultLogger) WithPrefix(prefix string) *DefaultLogger {
	child := *l
	child.prefix = prefix
	if l.prefix != "" {
		child.prefix = l.prefix + "/" + prefix
	}
	return &child
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.debug
}

// SetDebug flips debug output for this logger and every logger derived from it.
func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	*l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) prefixf(level string, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if l.prefix == "" {
		return level + ": " + msg
	}
	return "[" + l.prefix + "] " + level + ": " + msg
}

// Debugf is dropped unless debug is on. The per-second profiler report uses it.
func (l *DefaultLogger) Debugf(format string, args ...any) {
	if l.DebugEnabled() {
		l.out.Print(l.prefixf("DEBUG", format, args...))
	}
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.prefixf("INFO", format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.prefixf("WARN", format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.prefixf("ERROR", format, args...))
}

// silent backs OrNop. Tests build loops, schedulers and builders without a
// logger and get one of these.
type silent struct{}

func NewNopLogger() Logger { return silent{} }

func (silent) DebugEnabled() bool    { return false }
func (silent) SetDebug(bool)         {}
func (silent) Debugf(string, ...any) {}
func (silent) Infof(string, ...any)  {}
func (silent) Warnf(string, ...any)  {}
func (silent) Errorf(string, ...any) {}

// OrNop returns l, or a silent logger when l is nil. Never returns nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

// Sub derives the logger a package keeps, prefixed with the package's role.
// Loggers other than *DefaultLogger are returned unchanged.
func Sub(l Logger, prefix string) Logger {
	if dl, ok := l.(*DefaultLogger); ok {
		return dl.WithPrefix(prefix)
	}
	return OrNop(l)
}
