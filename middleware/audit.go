package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/towerdefense/audit"
)

// Audit records every request it wraps into trail. A nil trail is a no-op.
func Audit(trail *audit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if trail == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		e := audit.Entry{
			At:         start,
			TraceID:    GetRequestID(c),
			Source:     "http",
			Action:     c.Request.Method + " " + c.FullPath(),
			Client:     c.ClientIP(),
			Status:     c.Writer.Status(),
			DurationMs: float64(time.Since(start).Microseconds()) / 1000,
		}
		if len(c.Errors) > 0 {
			e.Error = c.Errors.Last().Error()
		}
		trail.Log(e)
	}
}
