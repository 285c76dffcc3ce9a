// Package obslog builds the single process-wide logger and the field
// helpers the rest of the pipeline uses to describe a bar identity or a
// fetch attempt consistently, the same zap usage the teacher's
// arrowpipeline and server commands lean on.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger for the given environment name. "dev" gets a
// human-readable console encoder; anything else gets JSON at info level.
func New(environment string) (*zap.Logger, error) {
	if environment == "dev" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Identity is the recurring (symbol, timeframe, instrument_type) field set
// every ingest/fetch log line carries.
func Identity(symbol, timeframe, instrumentType string) []zap.Field {
	return []zap.Field{
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
		zap.String("instrument_type", instrumentType),
	}
}

// Range adds the half-open microsecond range a fetch or gap covers.
func Range(startUS, endUS int64) []zap.Field {
	return []zap.Field{
		zap.Int64("start_us", startUS),
		zap.Int64("end_us", endUS),
	}
}
