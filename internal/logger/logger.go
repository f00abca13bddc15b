// Package logger wraps zerolog with file rotation so every fabric
// binary (cmd/iqm, cmd/vehicle, cmd/info) logs the same way: structured
// fields, a component tag per subsystem (iqm, mqttclient, authority,
// telemetry, web), and optional rotation to disk via lumberjack.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a zerolog.Logger with rotation support.
type Logger struct {
	logger zerolog.Logger
	closer io.Closer
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Config configures a Logger. An empty Path logs to stdout with no
// rotation.
type Config struct {
	Path       string
	Level      string
	Format     string // "json" or "console"
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Init initializes the process-wide global logger exactly once. Later
// calls are no-ops; use New directly if a binary needs more than one
// independently-configured logger.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		globalLogger, err = New(cfg)
	})
	return err
}

// New builds an independent Logger.
func New(cfg Config) (*Logger, error) {
	var writer io.Writer
	var closer io.Closer

	if cfg.Path != "" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("logger: creating log directory %s: %w", dir, err)
			}
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		writer = rotator
		closer = rotator
	} else {
		writer = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var zlog zerolog.Logger
	if cfg.Format == "console" {
		zlog = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	} else {
		zlog = zerolog.New(writer).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zlog = zlog.Level(level)

	return &Logger{logger: zlog, closer: closer}, nil
}

// Get returns the global logger, falling back to an unconfigured
// stdout logger if Init was never called.
func Get() *Logger {
	if globalLogger == nil {
		return &Logger{logger: zerolog.New(os.Stdout).With().Timestamp().Logger()}
	}
	return globalLogger
}

// Zerolog exposes the underlying zerolog.Logger for packages that want
// the native API rather than this wrapper's field helpers.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// WithComponent tags every subsequent log line with a component field,
// e.g. "iqm", "mqttclient", "authority", "telemetry", "web".
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", component).Logger(), closer: l.closer}
}

// WithFields returns a new Logger carrying additional structured
// fields on every subsequent line.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{logger: ctx.Logger(), closer: l.closer}
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(l.logger.Debug(), msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(l.logger.Info(), msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(l.logger.Warn(), msg, fields...) }

func (l *Logger) Error(msg string, err error, fields ...interface{}) {
	l.log(l.logger.Error().Err(err), msg, fields...)
}

func (l *Logger) Fatal(msg string, err error, fields ...interface{}) {
	l.log(l.logger.Fatal().Err(err), msg, fields...)
}

func (l *Logger) log(event *zerolog.Event, msg string, fields ...interface{}) {
	if len(fields)%2 != 0 {
		event.Interface("invalid_fields", fields)
		event.Msg(msg)
		return
	}
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		event.Interface(key, fields[i+1])
	}
	event.Msg(msg)
}

// Close flushes and closes the underlying rotating writer, if any. It
// is a no-op for stdout-backed loggers.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Global convenience functions operating on the process-wide logger.

func Debug(msg string, fields ...interface{})            { Get().Debug(msg, fields...) }
func Info(msg string, fields ...interface{})              { Get().Info(msg, fields...) }
func Warn(msg string, fields ...interface{})              { Get().Warn(msg, fields...) }
func Error(msg string, err error, fields ...interface{})  { Get().Error(msg, err, fields...) }
func Fatal(msg string, err error, fields ...interface{})  { Get().Fatal(msg, err, fields...) }
