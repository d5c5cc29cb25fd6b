package respond

import (
	"github.com/gin-gonic/gin"

	"face-analysis-backend/internal/shared/telemetry"
)

// ErrorBody is the error payload returned to clients.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// Error logs and sends an error response. message is stable per failure class,
// details carries the human-readable cause.
func Error(c *gin.Context, status int, code, message, details string) {
	telemetry.Error("http.error", map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"details":    details,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	})

	c.AbortWithStatusJSON(status, ErrorBody{
		Code:    code,
		Message: message,
		Details: details,
	})
}
