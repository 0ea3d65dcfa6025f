// Package logging builds the zap loggers used by the commands.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string `yaml:"level" json:"level"`
	// Format is json or text. Empty means json.
	Format      string `yaml:"format" json:"format"`
	Development bool   `yaml:"development" json:"development"`
	// OutputPaths defaults to stderr.
	OutputPaths []string `yaml:"output_paths" json:"output_paths,omitempty"`
}

func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "", "json", "text", "console":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	switch cfg.Format {
	case "", "json":
		zc.Encoding = "json"
	case "text", "console":
		zc.Encoding = "console"
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}
	return zc.Build()
}

// Must is New for command entry points; it falls back to a production
// logger when cfg is invalid.
func Must(cfg Config) *zap.Logger {
	log, err := New(cfg)
	if err != nil {
		log, _ = zap.NewProduction()
		log.Warn("invalid logging config, using defaults", zap.Error(err))
	}
	return log
}
