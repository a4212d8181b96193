package config

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var processLogger *zap.Logger

// NewLogger builds the process-wide zap logger at the given level. Unknown
// level strings fall back to info so a bad env var never blocks startup.
func NewLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(parseLogLevel(level))

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	processLogger = logger
	return logger, nil
}

func parseLogLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// FlushLogs drains buffered entries at shutdown.
func FlushLogs() {
	if processLogger != nil {
		processLogger.Sync()
	}
}
