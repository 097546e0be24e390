// Package httputil provides response helpers shared by the API handlers and
// the middleware chain.
package httputil

import "github.com/gin-gonic/gin"

// RespondError writes the error envelope ({code, message, request_id}) and
// aborts the request. Every error the API emits goes through here so clients
// can rely on one shape.
func RespondError(c *gin.Context, status int, code, message string) {
	var requestID string
	if rid, exists := c.Get("request_id"); exists {
		if s, ok := rid.(string); ok {
			requestID = s
		}
	}

	resp := map[string]string{
		"code":    code,
		"message": message,
	}

	if requestID != "" {
		resp["request_id"] = requestID
	}

	c.AbortWithStatusJSON(status, resp)
}
