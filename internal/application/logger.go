package application

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StructuredLogger provides structured logging with context.
// Output goes to stderr so the stdio transport keeps stdout for protocol messages.
type StructuredLogger struct {
	logger *zap.Logger
}

// NewZapLogger builds the process logger.
// env "development" selects the console encoder; anything else logs JSON.
func NewZapLogger(level, env string) (*zap.Logger, error) {
	var config zap.Config
	if env == "development" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build()
}

// NewStructuredLogger wraps a zap logger. A nil logger discards everything.
func NewStructuredLogger(logger *zap.Logger) *StructuredLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StructuredLogger{logger: logger}
}

// Zap returns the underlying zap logger.
func (l *StructuredLogger) Zap() *zap.Logger {
	return l.logger
}

// LogDebug logs a debug message with context.
func (l *StructuredLogger) LogDebug(message string, context map[string]interface{}) {
	l.logger.Debug(message, fields(nil, context)...)
}

// LogInfo logs an informational message with context.
func (l *StructuredLogger) LogInfo(message string, context map[string]interface{}) {
	l.logger.Info(message, fields(nil, context)...)
}

// LogError logs an error message with context.
func (l *StructuredLogger) LogError(message string, err error, context map[string]interface{}) {
	l.logger.Error(message, fields(err, context)...)
}

// Sync flushes buffered entries.
func (l *StructuredLogger) Sync() error {
	return l.logger.Sync()
}

func fields(err error, context map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(context)+1)
	if err != nil {
		out = append(out, zap.Error(err))
	}
	for k, v := range context {
		out = append(out, zap.Any(k, v))
	}
	return out
}
