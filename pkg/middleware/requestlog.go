package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Karenfernandes20/integrai-sub001/pkg/logger"
)

// RequestLogConfig holds configuration for the request log middleware
type RequestLogConfig struct {
	// SkipPaths is a list of paths to skip logging (health probes, metrics)
	SkipPaths []string
}

// RequestLogger logs one structured line per completed request
func RequestLogger(config *RequestLogConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.ErrorCtx(c.Request.Context(), "request completed", fields...)
		case c.Writer.Status() >= 400:
			logger.WarnCtx(c.Request.Context(), "request completed", fields...)
		default:
			logger.InfoCtx(c.Request.Context(), "request completed", fields...)
		}
	}
}
