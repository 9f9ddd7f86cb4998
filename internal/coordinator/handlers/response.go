package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse builds the JSON error envelope used for 4xx/5xx answers.
// Successful answers follow the published wire contract directly.
func ErrorResponse(code string, message string) gin.H {
	return gin.H{
		"error":     code,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}
}
