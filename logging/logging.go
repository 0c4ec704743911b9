// Package logging adapts the teacher's plain log.Logger-backed logging
// interface to a module made of independent numerical kernels running
// inside possibly-concurrent fusion sessions, rather than a single-process
// game engine with one global logger resource. Two changes follow from
// that: the App-resource wiring (LoggingModule/App.Logger) is gone, since
// kernels and fusion.Session accept a Logger directly; and Logger grows
// WithField, so a session can stamp every line it emits with its own
// correlation ID instead of every call site hand-formatting "session %s"
// into its message.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// WithField returns a Logger that prepends key=value to every message
	// it emits, without mutating the receiver. Used to stamp a fusion
	// session's correlation ID onto its log lines once, at construction,
	// instead of every call site interpolating it into a format string.
	WithField(key string, value any) Logger
}

type DefaultLogger struct {
	mu     sync.Mutex
	debug  bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(os.Stdout, "", flags),
		err:    log.New(os.Stderr, "", flags),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) prefixf(level string, format string, args ...any) string {
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s: %s", l.prefix, level, fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf("%s: %s", level, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	l.mu.Lock()
	dbg := l.debug
	l.mu.Unlock()
	if !dbg {
		return
	}
	l.out.Print(l.prefixf("DEBUG", format, args...))
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

func (l *DefaultLogger) WithField(key string, value any) Logger {
	return withField(l, key, value)
}

type nopLogger struct{}

// NewNopLogger returns a Logger whose methods are no-ops, so callers never
// need to nil-check before logging.
func NewNopLogger() Logger { return &nopLogger{} }

func (n *nopLogger) DebugEnabled() bool                     { return false }
func (n *nopLogger) SetDebug(enabled bool)                  {}
func (n *nopLogger) Debugf(format string, args ...any)      {}
func (n *nopLogger) Infof(format string, args ...any)       {}
func (n *nopLogger) Warnf(format string, args ...any)       {}
func (n *nopLogger) Errorf(format string, args ...any)      {}
func (n *nopLogger) WithField(key string, value any) Logger { return n }

// fieldLogger decorates a Logger with a fixed "key=value" tag prepended to
// every message it emits. Stacking WithField calls chains tags left to
// right in call order (the first WithField's tag comes first).
type fieldLogger struct {
	inner Logger
	tag   string
}

func withField(l Logger, key string, value any) Logger {
	return &fieldLogger{inner: l, tag: fmt.Sprintf("%s=%v", key, value)}
}

func (f *fieldLogger) DebugEnabled() bool    { return f.inner.DebugEnabled() }
func (f *fieldLogger) SetDebug(enabled bool) { f.inner.SetDebug(enabled) }

func (f *fieldLogger) Debugf(format string, args ...any) {
	f.inner.Debugf(f.tag+" "+format, args...)
}

func (f *fieldLogger) Infof(format string, args ...any) {
	f.inner.Infof(f.tag+" "+format, args...)
}

func (f *fieldLogger) Warnf(format string, args ...any) {
	f.inner.Warnf(f.tag+" "+format, args...)
}

func (f *fieldLogger) Errorf(format string, args ...any) {
	f.inner.Errorf(f.tag+" "+format, args...)
}

func (f *fieldLogger) WithField(key string, value any) Logger {
	return withField(f, key, value)
}

// OrNop returns l if non-nil, otherwise a no-op Logger.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}
