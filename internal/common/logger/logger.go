// Package logger wraps zap for structured, component-scoped logging.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Logger wraps a zap logger and its sugared form.
type Logger struct {
	z *zap.Logger
	s *zap.SugaredLogger
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
	defaultMu   sync.RWMutex
)

// NewLogger builds a Logger from config.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		_ = level.UnmarshalText([]byte(cfg.Level))
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if detectLogFormat(cfg.Format) == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), level)
	z := zap.New(core, zap.AddCaller())

	return &Logger{z: z, s: z.Sugar()}, nil
}

func detectLogFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		return "console"
	default:
		return "json"
	}
}

// Default returns the process-wide default logger, constructing a bare
// production logger the first time it is used if SetDefault was never
// called.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLog
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	defaultOnce.Do(func() {
		l, err := NewLogger(LoggingConfig{Level: "info", Format: "json"})
		if err != nil {
			panic(err)
		}
		SetDefault(l)
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLog
}

// SetDefault installs l as the process-wide default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLog = l
	defaultMu.Unlock()
}

// WithFields returns a child logger carrying the given structured fields
// on every subsequent call, e.g. WithFields(zap.String("component", "bridge")).
func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	z := l.z.With(fields...)
	return &Logger{z: z, s: z.Sugar()}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)   { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)   { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field)  { l.z.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...zap.Field)  { l.z.Fatal(msg, fields...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
