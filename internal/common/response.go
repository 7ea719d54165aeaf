package common

import (
	"github.com/gin-gonic/gin"
)

// Error codes used in the uniform error body. Short, stable strings; the
// optional message carries human text and details carries validation maps.
const (
	CodeValidation   = "validation_error"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal_error"
	CodeDegraded     = "degraded"
)

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func OK(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

func Fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorBody{Error: code, Message: message})
}

func FailDetails(c *gin.Context, status int, code, message string, details map[string]string) {
	c.JSON(status, errorBody{Error: code, Message: message, Details: details})
}
