// Package ratelog implements the rate-limited logging rule from spec §7:
// framing errors log the first 3 occurrences, then every 50th after that.
// The Logger interface mirrors the teacher's pkg/chatgear/logger.go shape —
// a small Printf-style contract over log/slog, one line per event.
package ratelog

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Logger is the logging contract used across the server.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

// Slog adapts a *slog.Logger to Logger, prefixing every line with component.
func Slog(l *slog.Logger, component string) Logger {
	return &slogLogger{l: l, prefix: component + ": "}
}

type slogLogger struct {
	l      *slog.Logger
	prefix string
}

func (s *slogLogger) Errorf(format string, args ...any) { s.l.Error(s.prefix + fmt.Sprintf(format, args...)) }
func (s *slogLogger) Warnf(format string, args ...any)  { s.l.Warn(s.prefix + fmt.Sprintf(format, args...)) }
func (s *slogLogger) Infof(format string, args ...any)  { s.l.Info(s.prefix + fmt.Sprintf(format, args...)) }
func (s *slogLogger) Debugf(format string, args ...any) { s.l.Debug(s.prefix + fmt.Sprintf(format, args...)) }

// Default returns a Logger backed by slog.Default().
func Default(component string) Logger {
	return Slog(slog.Default(), component)
}

// Limiter gates a noisy event so it logs the first `burst` times, then every
// `every`th time after that.
type Limiter struct {
	burst, every uint64
	n            atomic.Uint64
}

// NewLimiter creates a Limiter with the given burst and stride.
func NewLimiter(burst, every uint64) *Limiter {
	if every == 0 {
		every = 1
	}
	return &Limiter{burst: burst, every: every}
}

// Allow reports whether this occurrence should be logged.
func (l *Limiter) Allow() bool {
	n := l.n.Add(1)
	if n <= l.burst {
		return true
	}
	return (n-l.burst)%l.every == 0
}
