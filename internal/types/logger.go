package types

import "log/slog"

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
// slog.Logger satisfies Info, Error and Warn but its With returns
// *slog.Logger, so an adapter is necessary.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns a Logger backed by l, or slog.Default() when l is nil.
func NewSlogAdapter(l *slog.Logger) *SlogAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &SlogAdapter{logger: l}
}

func (a *SlogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *SlogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *SlogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *SlogAdapter) With(args ...any) Logger {
	return &SlogAdapter{logger: a.logger.With(args...)}
}

var _ Logger = (*SlogAdapter)(nil)
