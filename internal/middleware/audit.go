package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-dashboard/pkg/middleware/requestid"
)

// Audit writes one audit log line per mutating request. The resource is read
// from the first non-empty route parameter among params.
func Audit(log *zap.Logger, action string, params ...string) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("audit")
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		var resource string
		for _, p := range params {
			if resource = c.Param(p); resource != "" {
				break
			}
		}

		outcome := "succeeded"
		if len(c.Errors) > 0 || c.Writer.Status() >= 400 {
			outcome = "failed"
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("outcome", outcome),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.GetHeader("User-Agent")),
		}
		if resource != "" {
			fields = append(fields, zap.String("resource", resource))
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, zap.String("resource_id", id))
		}
		if sess, ok := CurrentSession(c); ok {
			fields = append(fields, zap.String("user", sess.Username()))
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		log.Info("audit", fields...)
	}
}
