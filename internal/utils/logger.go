// Package utils provides utility functions used throughout the application.
package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger that provides structured logging
// with variadic key-value context.
type Logger struct {
	*zap.Logger
}

// LoggerOptions configures the logger instance.
type LoggerOptions struct {
	// Development switches to human-readable console output
	Development bool
	// Level sets the minimum enabled logging level
	Level zapcore.Level
	// OutputPaths defines where logs are written (e.g., stdout, file)
	OutputPaths []string
}

// NewLogger creates a new structured logger with the provided options.
// If no options are provided, production defaults are used.
func NewLogger(opts ...LoggerOptions) *Logger {
	options := LoggerOptions{
		Level:       zapcore.InfoLevel,
		OutputPaths: []string{"stdout"},
	}
	if len(opts) > 0 {
		options = opts[0]
	}
	if len(options.OutputPaths) == 0 {
		options.OutputPaths = []string{"stdout"}
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(options.Level),
		Development: options.Development,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      options.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	if options.Development {
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		fallback := zap.NewExample()
		fallback.Error("Failed to create logger", zap.Error(err))
		return &Logger{fallback}
	}

	return &Logger{logger}
}

// Debug logs a message at debug level with structured context.
func (l *Logger) Debug(msg string, fields ...any) {
	l.Logger.Debug(msg, toZapFields(fields)...)
}

// Info logs a message at info level with structured context.
func (l *Logger) Info(msg string, fields ...any) {
	l.Logger.Info(msg, toZapFields(fields)...)
}

// Warn logs a message at warn level with structured context.
func (l *Logger) Warn(msg string, fields ...any) {
	l.Logger.Warn(msg, toZapFields(fields)...)
}

// Error logs a message at error level with structured context.
func (l *Logger) Error(msg string, err error, fields ...any) {
	zapFields := toZapFields(fields)
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	l.Logger.Error(msg, zapFields...)
}

// Fatal logs a message at fatal level and exits the process.
func (l *Logger) Fatal(msg string, err error, fields ...any) {
	zapFields := toZapFields(fields)
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	l.Logger.Fatal(msg, zapFields...)
}

// With creates a new Logger with additional structured context.
func (l *Logger) With(fields ...any) *Logger {
	return &Logger{l.Logger.With(toZapFields(fields)...)}
}

// Named adds a sub-scope to the logger's name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.Logger.Named(name)}
}

// Sync flushes any buffered log entries. Call before exiting.
func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}

// toZapFields converts variadic key-value pairs to zap fields. Keys must be
// strings; a trailing key without a value gets a placeholder.
func toZapFields(fields []any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	if len(fields)%2 != 0 {
		fields = append(fields, "MISSING_VALUE")
	}

	result := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = "INVALID_KEY"
		}

		switch v := fields[i+1].(type) {
		case string:
			result = append(result, zap.String(key, v))
		case int:
			result = append(result, zap.Int(key, v))
		case int64:
			result = append(result, zap.Int64(key, v))
		case float64:
			result = append(result, zap.Float64(key, v))
		case bool:
			result = append(result, zap.Bool(key, v))
		case error:
			result = append(result, zap.Error(v))
		default:
			result = append(result, zap.Any(key, v))
		}
	}
	return result
}

// GlobalLogger is the default application logger instance.
var GlobalLogger *Logger

func init() {
	GlobalLogger = NewLogger(LoggerOptions{
		Development: os.Getenv("APP_ENV") != "production",
		Level:       zapcore.InfoLevel,
	})
}

// GetLogger returns the global logger instance.
func GetLogger() *Logger {
	return GlobalLogger
}
