package logger

import (
	"os"
	"path/filepath"

	"github.com/ippclub/nxsync/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger builds the JSON logger. It always writes to stdout and also to a
// rotated file when cfg.Log.Filename is set.
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}

	if cfg.Log.Filename != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.Filename), 0755); err != nil {
			return nil, err
		}
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Log.Filename,
			MaxSize:    cfg.Log.MaxSize, // megabytes
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge, // days
			Compress:   cfg.Log.Compress,
		}))
	}

	return New(zapcore.NewMultiWriteSyncer(sinks...), cfg.Log.Level), nil
}

// New builds a logger with the standard encoding writing to w
func New(w zapcore.WriteSyncer, level string) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		w,
		getLogLevel(level),
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// getLogLevel converts string level to zapcore.Level
func getLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
