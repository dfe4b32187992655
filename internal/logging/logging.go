// Package logging provides the zap-backed logger used by the batch.
//
// Messages go to the console and, when a file path is given, are appended to
// the run log file. The Debug/Info/Warn/Error methods take printf-style
// arguments so the logger satisfies the Logger interfaces of the converter
// and the ledger builder.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures a Logger.
type Options struct {
	// Level is "debug", "info", "warn" or "error".
	Level string

	// FilePath is the log file. Empty disables file logging.
	FilePath string

	// Console enables the stdout mirror.
	Console bool
}

// Logger is a printf-style wrapper around a zap logger.
type Logger struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	file   *os.File
}

// New builds a Logger from opts.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var cores []zapcore.Core

	if opts.Console {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.Lock(os.Stdout),
			level,
		))
	}

	var file *os.File
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err = os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(fileCfg),
			zapcore.AddSync(file),
			level,
		))
	}

	return FromZap(zap.New(zapcore.NewTee(cores...)), file), nil
}

// FromZap wraps an existing zap logger. file, when not nil, is closed by Close.
func FromZap(logger *zap.Logger, file *os.File) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger, sugar: logger.Sugar(), file: file}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return FromZap(zap.NewNop(), nil)
}

// ParseLevel converts a level name to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// With returns a child logger carrying a constant field, such as the run ID.
func (l *Logger) With(key string, value interface{}) *Logger {
	child := l.logger.With(zap.Any(key, value))
	return &Logger{logger: child, sugar: child.Sugar(), file: l.file}
}

// Debug logs a message with debug severity.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.sugar.Debugf(msg, args...)
}

// Info logs a message with info severity.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.sugar.Infof(msg, args...)
}

// Warn logs a message with warn severity.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.sugar.Warnf(msg, args...)
}

// Error logs a message with error severity.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.sugar.Errorf(msg, args...)
}

// Raw returns the underlying zap logger.
func (l *Logger) Raw() *zap.Logger {
	return l.logger
}

// Close flushes buffered entries and closes the log file.
func (l *Logger) Close() error {
	// Sync on stdout fails on some terminals; only file errors matter.
	_ = l.logger.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
