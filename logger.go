package afflow

import "go.uber.org/zap"

// Logger provides a simple interface for pipeline logging.
type Logger interface {
	// Debug logs a message at debug level
	Debug(format string, args ...interface{})

	// Info logs a message at info level
	Info(format string, args ...interface{})

	// Warn logs a message at warning level
	Warn(format string, args ...interface{})

	// Error logs a message at error level
	Error(format string, args ...interface{})
}

// DefaultLogger is a no-op logger implementation
type DefaultLogger struct{}

// Debug implements Logger.Debug
func (l *DefaultLogger) Debug(format string, args ...interface{}) {}

// Info implements Logger.Info
func (l *DefaultLogger) Info(format string, args ...interface{}) {}

// Warn implements Logger.Warn
func (l *DefaultLogger) Warn(format string, args ...interface{}) {}

// Error implements Logger.Error
func (l *DefaultLogger) Error(format string, args ...interface{}) {}

// NewDefaultLogger creates a new default no-op logger
func NewDefaultLogger() Logger {
	return &DefaultLogger{}
}

// ZapLogger adapts a zap sugared logger to the Logger interface.
type ZapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps a zap logger for use by the orchestrator and agents.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{s: l.Sugar()}
}

// Debug implements Logger.Debug
func (l *ZapLogger) Debug(format string, args ...interface{}) { l.s.Debugf(format, args...) }

// Info implements Logger.Info
func (l *ZapLogger) Info(format string, args ...interface{}) { l.s.Infof(format, args...) }

// Warn implements Logger.Warn
func (l *ZapLogger) Warn(format string, args ...interface{}) { l.s.Warnf(format, args...) }

// Error implements Logger.Error
func (l *ZapLogger) Error(format string, args ...interface{}) { l.s.Errorf(format, args...) }
