package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the sinks a logger writes to.
type Options struct {
	// Env "production" selects JSON output at info level; anything else is
	// colourised console output at debug level.
	Env string
	// File, when set, adds a size-rotated JSON log file.
	File string
	// CloudWatch, when set, receives JSON lines (see pkg/aws CloudWatchLogsClient).
	CloudWatch io.Writer
}

// New builds the logger described by opts.
func New(opts Options) *zap.Logger {
	var config zap.Config
	if opts.Env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	level := zap.NewAtomicLevelAt(config.Level.Level())

	var consoleEncoder zapcore.Encoder
	if opts.Env == "production" {
		consoleEncoder = zapcore.NewJSONEncoder(config.EncoderConfig)
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
	}
	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)}

	jsonConfig := config.EncoderConfig
	jsonConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	jsonEncoder := zapcore.NewJSONEncoder(jsonConfig)

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(rotator), level))
	}
	if opts.CloudWatch != nil {
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(opts.CloudWatch), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// Initialize builds the logger and installs it as the zap global. The
// returned func flushes buffered entries.
func Initialize(opts Options) func() {
	l := New(opts)
	zap.ReplaceGlobals(l)
	return func() { _ = l.Sync() }
}
