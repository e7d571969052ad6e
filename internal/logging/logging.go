// Package logging wires zap + lumberjack into the structured, leveled
// logger used throughout the gateway, with a per-call_id child logger for
// session-scoped log lines.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the small subset of *zap.SugaredLogger the rest of the gateway
// depends on, kept as an interface so tests can swap in an observer core.
type Logger interface {
	Debugw(msg string, kv ...interface{})
	Infow(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
	Errorw(msg string, kv ...interface{})
	With(kv ...interface{}) Logger
	Sync() error
}

type sugared struct {
	*zap.SugaredLogger
}

func (s *sugared) With(kv ...interface{}) Logger {
	return &sugared{s.SugaredLogger.With(kv...)}
}

// New builds a production-leveled zap logger that writes JSON lines to a
// lumberjack-rotated file under dir/gateway.log and console-formatted
// lines to stderr.
func New(dir, level string) (Logger, error) {
	lvl := zapcore.InfoLevel
	_ = lvl.UnmarshalText([]byte(level))

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   dir + "/gateway.log",
		MaxSize:    100, // megabytes
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileWriter, lvl),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stderr), lvl),
	)

	base := zap.New(core, zap.AddCaller())
	return &sugared{base.Sugar()}, nil
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Logger {
	return &sugared{zap.NewNop().Sugar()}
}
