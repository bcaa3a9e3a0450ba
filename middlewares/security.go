package middlewares

import (
	"github.com/gin-gonic/gin"
)

// securityHeaders are sent on every response. connect-src admits the kitchen
// and floor websocket channels.
var securityHeaders = map[string]string{
	"X-Frame-Options":           "DENY",
	"X-Content-Type-Options":    "nosniff",
	"Content-Security-Policy":   "default-src 'self'; connect-src 'self' ws: wss:",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
}

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		for k, v := range securityHeaders {
			c.Header(k, v)
		}
		c.Next()
	}
}
