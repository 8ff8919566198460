package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
)

// AnnotateLogger attaches the request coordinates to every entry.
func AnnotateLogger(logger *zap.Logger, method string, req *connector.Request) *zap.Logger {
	logger = logger.With(zap.String("method", method))

	if req != nil {
		fields := []zap.Field{}
		if req.Catalog != "" {
			fields = append(fields, zap.String("catalog", req.Catalog))
		}
		if req.Engine != "" {
			fields = append(fields, zap.String("engine", req.Engine))
		}
		if req.Table.Table != "" {
			fields = append(fields, zap.Stringer("table", req.Table))
		}
		if len(req.Constraints) > 0 {
			fields = append(fields, zap.Any("constraints", req.Constraints))
		}
		logger = logger.With(fields...)
	}

	return logger
}

func LogCloserError(logger *zap.Logger, closer io.Closer, msg string) {
	if err := closer.Close(); err != nil {
		logger.Error(msg, zap.Error(err))
	}
}

// NewLogger builds a console logger writing to stderr at the given level
// (debug, info, warn, error).
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	loggerCfg := zap.NewDevelopmentConfig()
	loggerCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	loggerCfg.Encoding = "console"
	loggerCfg.Development = false
	loggerCfg.DisableStacktrace = true
	loggerCfg.Level.SetLevel(lvl)

	logger, err := loggerCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("new logger: %w", err)
	}

	return logger, nil
}

func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "trace", "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	}

	return zapcore.InvalidLevel, fmt.Errorf("unknown log level %q", level)
}
