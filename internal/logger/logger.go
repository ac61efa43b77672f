package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Name is the root logger name. Components add their own with Named.
const Name = "dnsupdater"

// Option adjusts how New builds the logger.
type Option func(*options)

type options struct {
	console io.Writer
	verbose bool
}

// Verbose forces debug level regardless of the configured level.
func Verbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

// Console replaces stdout as the destination of human readable output.
func Console(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// New creates the process logger. Output goes to the console and,
// when cfg.File is set, to a rotated JSON file as well.
func New(cfg *Config, opts ...Option) (*zap.Logger, error) {
	o := options{console: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}
	if o.verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	enc := encoderConfig()
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(o.console), level),
	}
	if cfg.File != "" {
		core, err := fileCore(cfg, enc, level)
		if err != nil {
			return nil, err
		}
		cores = append(cores, core)
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.DPanicLevel),
	).Named(Name), nil
}

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return enc
}

// fileCore writes JSON lines to cfg.File, rotated by lumberjack.
func fileCore(cfg *Config, enc zapcore.EncoderConfig, level zapcore.LevelEnabler) (zapcore.Core, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), level), nil
}
