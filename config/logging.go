package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// setLogger builds the zap logger for the given environment. Production gets
// sampled JSON at info level, development gets full debug output.
func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		return cfg.Build()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}
