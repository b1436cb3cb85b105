package reporting

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat represents the logging format
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

const (
	// LogDir is the log directory inside a workspace
	LogDir = "log"

	// ResultsFile is the run log inside LogDir
	ResultsFile = "results.log"

	// MaxLogBytes is the size at which the results log is rotated
	MaxLogBytes int64 = 512 * 1024 * 1024
)

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level  LogLevel
	Format LogFormat

	// Output receives console output, stdout when nil
	Output io.Writer

	// File, when set, receives an uncolored copy of every entry
	File io.Writer
}

// Logger provides structured logging
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger
func NewLogger(cfg LoggerConfig) *Logger {
	return &Logger{logger: newZerolog(cfg)}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func newZerolog(cfg LoggerConfig) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	writers := []io.Writer{formatWriter(cfg.Output, cfg.Format, false)}
	if cfg.File != nil {
		writers = append(writers, formatWriter(cfg.File, cfg.Format, true))
	}

	var output io.Writer = writers[0]
	if len(writers) > 1 {
		output = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(output).With().Timestamp().Logger().Level(zerologLevel(cfg.Level))
}

func formatWriter(w io.Writer, format LogFormat, noColor bool) io.Writer {
	if format == LogFormatJSON {
		return w
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...interface{}) {
	event := l.logger.Debug()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...interface{}) {
	event := l.logger.Info()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...interface{}) {
	event := l.logger.Warn()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...interface{}) {
	event := l.logger.Error()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// WithField creates a child logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger: l.logger.With().Interface(key, value).Logger(),
	}
}

// addFields adds key-value pairs to a log event
func (l *Logger) addFields(event *zerolog.Event, fields ...interface{}) {
	if len(fields)%2 != 0 {
		event.Str("error", "odd number of fields")
		return
	}

	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			event.Str("error", fmt.Sprintf("field key at index %d is not a string", i))
			continue
		}

		switch value := fields[i+1].(type) {
		case error:
			event.AnErr(key, value)
		default:
			event.Interface(key, value)
		}
	}
}

// GetZerologLogger returns the underlying zerolog logger
func (l *Logger) GetZerologLogger() zerolog.Logger {
	return l.logger
}

// InitGlobalLogger points the global zerolog logger, used by the injection
// packages, at the same outputs as cfg
func InitGlobalLogger(cfg LoggerConfig) {
	log.Logger = newZerolog(cfg)
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))
}

// ParseLogLevel validates a level name
func ParseLogLevel(level string) (LogLevel, error) {
	switch l := LogLevel(level); l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return l, nil
	case "":
		return LogLevelInfo, nil
	default:
		return "", fmt.Errorf("invalid log level: %s", level)
	}
}

// OpenResultsLog opens <workspace>/log/results.log for appending, rotating
// it first when it has grown past MaxLogBytes. Up to backups rotated copies
// are kept as results.log.1 (newest) to results.log.N.
func OpenResultsLog(workspace string, backups int) (*os.File, error) {
	dir := filepath.Join(workspace, LogDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, ResultsFile)
	if err := rotate(path, MaxLogBytes, backups); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open results log: %w", err)
	}
	return f, nil
}

func rotate(path string, maxBytes int64, backups int) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() < maxBytes {
		return nil
	}

	if backups <= 0 {
		if err := os.Truncate(path, 0); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", path, err)
		}
		return nil
	}

	for i := backups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", path, i)
		if err := os.Rename(src, fmt.Sprintf("%s.%d", path, i+1)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to rotate %s: %w", src, err)
		}
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("failed to rotate %s: %w", path, err)
	}
	return nil
}
