package logger

import (
	"fmt"
	"fortunex-api/internal/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production uses JSON output with ISO8601
// timestamps, every other environment gets the colored console encoder
// unless LOG_FORMAT asks for json.
func New(env config.Environment, logCfg config.Log) (*zap.Logger, error) {
	var cfg zap.Config

	if env.Name == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		if logCfg.Format == "json" {
			cfg.Encoding = "json"
		} else {
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}

	level, err := zapcore.ParseLevel(logCfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", logCfg.Level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURIPath:   true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request_id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.String("ip", v.RemoteIP),
				zap.Duration("latency", v.Latency),
				zap.String("user_agent", v.UserAgent),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}

			switch {
			case v.Status >= 500:
				log.Error("Request completed", fields...)
			case v.Status >= 400:
				log.Warn("Request completed", fields...)
			default:
				log.Info("Request completed", fields...)
			}
			return nil
		},
	})
}
