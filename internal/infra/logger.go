package infra

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds one zap core writing JSON to stdout and a rotated file,
// and returns it both as a *zap.Logger and through the slog API.
func NewLogger(cfg *Config) (*slog.Logger, *zap.Logger) {
	var writer io.Writer = os.Stdout

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err == nil {
			// Setup lumberjack logger for file rotation
			fileLogger := &lumberjack.Logger{
				Filename:   cfg.Logging.File,
				MaxSize:    cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
				MaxAge:     cfg.Logging.MaxAgeDays,
				Compress:   cfg.Logging.Compress,
			}
			// Multi-writer: Log to both file and stdout
			writer = io.MultiWriter(os.Stdout, fileLogger)
		}
	}

	core := newCore(writer, parseLevel(cfg.Logging.Level))
	zapLogger := zap.New(core, zap.AddCaller())
	return slog.New(zapslog.NewHandler(core)), zapLogger
}

func newCore(w io.Writer, level zapcore.Level) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), level)
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
