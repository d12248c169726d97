// logger/logger.go
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// ParseLevel maps a config string (debug, info, warn, error) to a LogLevel.
// Unknown values fall back to INFO.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug", "DEBUG":
		return DEBUG
	case "warn", "WARN", "warning":
		return WARN
	case "error", "ERROR":
		return ERROR
	default:
		return INFO
	}
}

type Logger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
	file  *os.File
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.Mutex
)

// ensureInitialized creates a console-only logger if Init was never called
func ensureInitialized() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if defaultLogger == nil {
			defaultLogger = build(nil, true, zap.NewAtomicLevelAt(zapcore.DebugLevel))
		}
	})
}

func build(file *os.File, console bool, level zap.AtomicLevel) *Logger {
	var cores []zapcore.Core

	if console {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level))
	}

	// file output stays uncolored and machine readable
	if file != nil {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), level))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{
		base:  base,
		sugar: base.Sugar(),
		level: level,
		file:  file,
	}
}

// Init initializes the logger with optional file and console output
// If filename is empty, logs only to console
// If console is false, logs only to file
func Init(filename string, console bool) error {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()

	var file *os.File
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
	}

	if file == nil && !console {
		return fmt.Errorf("no output destination specified")
	}

	old := defaultLogger
	defaultLogger = build(file, console, old.level)
	_ = old.base.Sync()
	if old.file != nil {
		old.file.Close()
	}
	return nil
}

// SetLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR)
// Messages below this level will not be logged
func SetLevel(level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.level.SetLevel(level.zapLevel())
}

// Close flushes buffered entries and closes the log file if one is open
func Close() {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()

	_ = defaultLogger.base.Sync()
	if defaultLogger.file != nil {
		defaultLogger.file.Close()
		defaultLogger = build(nil, true, defaultLogger.level)
	}
}

// Z returns the underlying zap logger for call sites that log structured fields.
func Z() *zap.Logger {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger.base.WithOptions(zap.AddCallerSkip(-1))
}

func current() *zap.SugaredLogger {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger.sugar
}

// Debug logs a debug message
func Debug(v ...interface{}) {
	current().Debug(v...)
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...interface{}) {
	current().Debugf(format, v...)
}

// Info logs an info message
func Info(v ...interface{}) {
	current().Info(v...)
}

// Infof logs a formatted info message
func Infof(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Warn logs a warning message
func Warn(v ...interface{}) {
	current().Warn(v...)
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// Error logs an error message
func Error(v ...interface{}) {
	current().Error(v...)
}

// Errorf logs a formatted error message
func Errorf(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	current().Fatal(v...)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	current().Fatalf(format, v...)
}
