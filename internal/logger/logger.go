package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// prodはJSON、それ以外は開発用のコンソール出力
func New(goEnv string) (*zap.Logger, error) {
	if goEnv == "prod" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// nilならNop
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
