package handlers

import (
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestLogger はリクエストごとのロガーを context に入れ、終了時にアクセスログを出す
func RequestLogger(logger *clog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader("X-GitHub-Delivery")
		if reqID == "" {
			reqID = c.GetHeader("X-Request-ID")
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)

		reqLogger := logger.With("request_id", reqID)
		c.Request = c.Request.WithContext(clog.WithLogger(c.Request.Context(), reqLogger))

		c.Next()

		reqLogger.Info("http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
	}
}
