// README: Recovery middleware; logs the panic and answers 500.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"commute/internal/logging"
)

func Recovery(logger *slog.Logger) gin.HandlerFunc {
	logger = logging.OrDefault(logger).With("component", "http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panicked", "path", c.Request.URL.Path, "panic", r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
