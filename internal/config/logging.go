package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mrz1836/depositor/internal/fileutil"
)

// logFilePermissions is the permission mode for log files.
const logFilePermissions = 0o600

// LogLevel represents logging verbosity levels.
type LogLevel int

// Log level constants.
const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelDebug
)

// ParseLogLevel parses a log level string.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LogLevelOff
	case "error":
		return LogLevelError
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelError
	}
}

// String returns the string representation of a log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelOff:
		return "off"
	case LogLevelError:
		return "error"
	case LogLevelDebug:
		return "debug"
	default:
		return "error"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		// above every level zap emits
		return zapcore.FatalLevel + 1
	}
}

// Logger writes JSON lines to a file through zap.
type Logger struct {
	mu       sync.Mutex
	level    LogLevel
	atomic   zap.AtomicLevel
	zap      *zap.Logger
	file     *os.File
	filePath string
}

// NewLogger creates a new logger. Level off or an empty path yields a
// logger that discards everything.
func NewLogger(level LogLevel, filePath string) (*Logger, error) {
	logger := &Logger{
		level:    level,
		atomic:   zap.NewAtomicLevelAt(level.zapLevel()),
		zap:      zap.NewNop(),
		filePath: filePath,
	}

	if level == LogLevelOff || filePath == "" {
		return logger, nil
	}

	filePath, err := fileutil.ExpandHome(filePath)
	if err != nil {
		return nil, err
	}
	if err := fileutil.EnsureDir(filePath); err != nil {
		return nil, err
	}

	// #nosec G304 -- log file path is from validated config
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePermissions)
	if err != nil {
		return nil, err
	}

	return logger.attach(f, filePath), nil
}

// NewWriterLogger creates a logger writing to w, mainly for tests and the server.
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	logger := &Logger{
		level:  level,
		atomic: zap.NewAtomicLevelAt(level.zapLevel()),
	}
	logger.zap = zap.New(zapcore.NewCore(newEncoder(), zapcore.Lock(zapcore.AddSync(w)), logger.atomic))
	return logger
}

func (l *Logger) attach(f *os.File, path string) *Logger {
	l.file = f
	l.filePath = path
	l.zap = zap.New(zapcore.NewCore(newEncoder(), zapcore.AddSync(f), l.atomic))
	return l
}

func newEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.TimeKey = "time"
	return zapcore.NewJSONEncoder(cfg)
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.zap.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.zap = zap.NewNop()
		return err
	}
	return nil
}

// SetLevel changes the log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.atomic.SetLevel(level.zapLevel())
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Path returns the log file path, or "" when logging to a writer.
func (l *Logger) Path() string {
	return l.filePath
}

// Zap returns the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zap
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.Zap().Debug(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.Zap().Error(fmt.Sprintf(format, args...))
}

// Writer returns an io.Writer that writes to the logger at the specified level.
func (l *Logger) Writer(level LogLevel) io.Writer {
	return &logWriter{logger: l, level: level}
}

// logWriter implements io.Writer for the logger.
type logWriter struct {
	logger *Logger
	level  LogLevel
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	switch w.level {
	case LogLevelDebug:
		w.logger.Debug("%s", msg)
	case LogLevelError:
		w.logger.Error("%s", msg)
	}
	return len(p), nil
}

// NullLogger returns a logger that discards all output.
func NullLogger() *Logger {
	return &Logger{
		level:  LogLevelOff,
		atomic: zap.NewAtomicLevelAt(LogLevelOff.zapLevel()),
		zap:    zap.NewNop(),
	}
}
