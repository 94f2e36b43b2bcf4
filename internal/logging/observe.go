package logging

import (
	"log/slog"

	"github.com/rs/zerolog"
)

// ObserveLogger adapts *slog.Logger to the observe.Logger interface.
type ObserveLogger struct {
	logger *slog.Logger
}

// NewObserveLogger creates a new ObserveLogger wrapping a *slog.Logger.
func NewObserveLogger(logger *slog.Logger) *ObserveLogger {
	return &ObserveLogger{logger: logger}
}

// Debug logs a debug message with optional key-value pairs.
func (l *ObserveLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

// Info logs an info message with optional key-value pairs.
func (l *ObserveLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

// Error logs an error message with optional key-value pairs.
func (l *ObserveLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

// ZerologObserveLogger adapts zerolog.Logger to the observe.Logger interface.
type ZerologObserveLogger struct {
	logger zerolog.Logger
}

// NewZerologObserveLogger creates a new ZerologObserveLogger wrapping a zerolog.Logger.
func NewZerologObserveLogger(logger zerolog.Logger) *ZerologObserveLogger {
	return &ZerologObserveLogger{logger: logger}
}

// Debug logs a debug message with optional key-value pairs.
func (l *ZerologObserveLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(toFields(keysAndValues)).Msg(msg)
}

// Info logs an info message with optional key-value pairs.
func (l *ZerologObserveLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(toFields(keysAndValues)).Msg(msg)
}

// Error logs an error message with optional key-value pairs.
func (l *ZerologObserveLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error().Fields(toFields(keysAndValues)).Msg(msg)
}

// toFields converts key-value pairs to a map for zerolog.
func toFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}
