// README: Request logging middleware over slog.
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"commute/internal/logging"
)

func Logging(logger *slog.Logger) gin.HandlerFunc {
	logger = logging.OrDefault(logger).With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"uid", CallerUID(c),
		)
	}
}
