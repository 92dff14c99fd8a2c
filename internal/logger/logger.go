package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the logging level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case Debug:
		return zapcore.DebugLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

var (
	globalLogger atomic.Pointer[zap.SugaredLogger]
	// logFile is the file opened by the last Init, closed by Close or the
	// next Init.
	logFile atomic.Pointer[os.File]
)

func current() *zap.SugaredLogger {
	if l := globalLogger.Load(); l != nil {
		return l
	}
	return zap.NewNop().Sugar()
}

// Init initializes the logger. format is "console" (default) or "json".
func Init(enabled bool, levelStr, logFile string, console bool, format string) error {
	if !enabled {
		globalLogger.Store(zap.NewNop().Sugar())
		return closeFile(nil)
	}

	var (
		sinks []zapcore.WriteSyncer
		file  *os.File
	)
	if logFile != "" {
		dir := filepath.Dir(logFile)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		sinks = append(sinks, zapcore.AddSync(f))
	}
	if console || len(sinks) == 0 {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), parseLevel(levelStr).zapLevel())
	globalLogger.Store(zap.New(core).Sugar())
	return closeFile(file)
}

// Sync flushes buffered entries.
func Sync() error {
	return current().Sync()
}

// Close flushes the logger, closes its log file and leaves a no-op logger
// in place.
func Close() error {
	l := current()
	globalLogger.Store(zap.NewNop().Sugar())
	_ = l.Sync()
	return closeFile(nil)
}

// closeFile installs next as the current log file and closes the previous one.
func closeFile(next *os.File) error {
	if prev := logFile.Swap(next); prev != nil && prev != next {
		return prev.Close()
	}
	return nil
}

func parseLevel(levelStr string) Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	current().Infof(format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) {
	current().Warnf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	current().Errorf(format, args...)
}

// Printer adapts the facade to Println/Printf style loggers such as the
// package-level loggers of the MQTT client.
type Printer struct {
	Level  Level
	Prefix string
}

// Println logs v at the printer's level.
func (p Printer) Println(v ...interface{}) {
	p.log(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

// Printf logs a formatted message at the printer's level.
func (p Printer) Printf(format string, v ...interface{}) {
	p.log(fmt.Sprintf(format, v...))
}

func (p Printer) log(msg string) {
	if p.Prefix != "" {
		msg = p.Prefix + " " + msg
	}
	switch p.Level {
	case Debug:
		Debugf("%s", msg)
	case Warn:
		Warnf("%s", msg)
	case Error:
		Errorf("%s", msg)
	default:
		Infof("%s", msg)
	}
}
