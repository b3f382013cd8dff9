package observ

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "parabrain"

// NewLogger builds the process logger: JSON in production, colored
// console output otherwise. An unknown level falls back to info.
//
// Why turn sampling off in production?
//   - zap's default production sampling drops repeated messages after
//     the first 100 per second. Chat turn logs repeat by nature and we
//     want every one of them.
func NewLogger(env, level string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Sampling = nil
		config.EncoderConfig.TimeKey = "ts"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	config.InitialFields = map[string]any{"service": serviceName}

	return config.Build()
}

// ParseLevel accepts zap level names ("debug", "warn"...) and returns
// InfoLevel for anything else.
func ParseLevel(level string) zapcore.Level {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return zapLevel
}
