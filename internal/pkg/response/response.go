// internal/pkg/response/response.go
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the JSON body of plain HTTP endpoints (health, stats, and the
// rejection of a socket upgrade). Socket traffic uses Builder instead.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// Error aborts the request and sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error) {
	c.Abort()

	resp := Response{Success: false, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(code, resp)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}
