// Package logging provides the service's leveled file logger.
//
// Lines are written in the redis log style:
//
//	[pid] 02 Jan 15:04:05 <glyph> message {fields}
//
// The five levels DEBUG, INFO, NOTICE, WARN and ERROR are mapped onto zap
// levels so that NOTICE lands on zap's Info and WARN/ERROR keep their zap
// meaning. DEBUG and INFO sit below zap's Info.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stone-age-io/redis-service/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Service log levels
const (
	DebugLevel  = zapcore.DebugLevel - 1
	InfoLevel   = zapcore.DebugLevel
	NoticeLevel = zapcore.InfoLevel
	WarnLevel   = zapcore.WarnLevel
	ErrorLevel  = zapcore.ErrorLevel
)

const timeLayout = "02 Jan 15:04:05"

// Logger is a thin leveled facade over a zap logger
type Logger struct {
	zl     *zap.Logger
	closer io.Closer
}

// New creates the file logger described by cfg. Entries below cfg.Level are
// discarded.
func New(cfg config.LoggingConfig) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	// lumberjack opens the file in append mode and rotates by size
	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     28, // days
	}

	encoder := NewEncoder(os.Getpid())
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(fileWriter), level),
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.Lock(os.Stdout), level))
	}

	return &Logger{
		zl:     zap.New(zapcore.NewTee(cores...)),
		closer: fileWriter,
	}, nil
}

// NewWithCore wraps an existing zap core. Used by tests with an observer core.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{zl: zap.New(core)}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{zl: zap.NewNop()}
}

// ParseLevel converts a level name to a service log level. The redis.conf
// spellings "verbose" and "warning" are accepted.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return DebugLevel, nil
	case "info", "verbose":
		return InfoLevel, nil
	case "notice":
		return NoticeLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", name)
	}
}

// Glyph returns the single character written for a level
func Glyph(level zapcore.Level) string {
	switch {
	case level <= DebugLevel:
		return "."
	case level == InfoLevel:
		return "-"
	case level == NoticeLevel:
		return "*"
	default:
		return "#"
	}
}

// Debug logs at DEBUG level
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zl.Log(DebugLevel, msg, fields...)
}

// Info logs at INFO (redis "verbose") level
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zl.Log(InfoLevel, msg, fields...)
}

// Notice logs at NOTICE level, the normal level for lifecycle events
func (l *Logger) Notice(msg string, fields ...zap.Field) {
	l.zl.Log(NoticeLevel, msg, fields...)
}

// Warn logs at WARN level
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zl.Log(WarnLevel, msg, fields...)
}

// Error logs at ERROR level
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zl.Log(ErrorLevel, msg, fields...)
}

// Close flushes the logger and closes the log file
func (l *Logger) Close() error {
	_ = l.zl.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// NewEncoder returns the redis-style line encoder for the given pid
func NewEncoder(pid int) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeLevel:      encodeGlyph,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}

	return &lineEncoder{
		Encoder: zapcore.NewConsoleEncoder(encoderConfig),
		pid:     pid,
	}
}

func encodeGlyph(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(Glyph(level))
}

var bufferPool = buffer.NewPool()

// lineEncoder prefixes every console-encoded line with the process id
type lineEncoder struct {
	zapcore.Encoder
	pid int
}

func (e *lineEncoder) Clone() zapcore.Encoder {
	return &lineEncoder{Encoder: e.Encoder.Clone(), pid: e.pid}
}

func (e *lineEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line, err := e.Encoder.EncodeEntry(ent, fields)
	if err != nil {
		return nil, err
	}
	defer line.Free()

	buf := bufferPool.Get()
	buf.AppendByte('[')
	buf.AppendInt(int64(e.pid))
	buf.AppendString("] ")
	_, _ = buf.Write(line.Bytes())
	return buf, nil
}
