package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kailas-cloud/nlquery/internal/version"
)

// NewLogger builds the process logger for env: JSON in prod, colored console in
// local, dev and docker, a no-op in test. level (debug, info, warn, error)
// replaces the env default when non-empty.
func NewLogger(env string, level ...string) (*zap.Logger, error) {
	if env == "test" {
		return zap.NewNop(), nil
	}
	cfg, err := configFor(env)
	if err != nil {
		return nil, err
	}
	if len(level) > 0 && level[0] != "" {
		lvl, err := ParseLevel(level[0])
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// ParseLevel turns a level name into an atomic level.
func ParseLevel(s string) (zap.AtomicLevel, error) {
	lvl, err := zap.ParseAtomicLevel(s)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

func configFor(env string) (zap.Config, error) {
	switch env {
	case "prod":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.InitialFields = map[string]any{"service": "nlquery", "version": version.Version}
		return cfg, nil
	case "local", "dev", "docker":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.InitialFields = map[string]any{"env": env}
		return cfg, nil
	default:
		return zap.Config{}, fmt.Errorf("unknown environment %q for logger", env)
	}
}
