package types

import "time"

// Logger defines the structured logging interface used throughout the
// pipeline. It is satisfied by a thin adapter over *slog.Logger; workers
// and services depend on this so tests can substitute a recorder.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// Clock abstracts time for testability. The collation cutoff and PDF
// filename folders both depend on "now", so both take a Clock.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
