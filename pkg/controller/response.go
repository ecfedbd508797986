package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nimburion/docstore/pkg/observability/logger"
)

// SuccessResponse represents a successful response with data
type SuccessResponse struct {
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Success sends a successful JSON response with HTTP 200 OK
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Message:   message,
		Data:      data,
		RequestID: logger.RequestIDFromContext(c.Request.Context()),
	})
}

// Created sends a successful JSON response with HTTP 201 Created
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Message:   message,
		Data:      data,
		RequestID: logger.RequestIDFromContext(c.Request.Context()),
	})
}

// Error sends an error response with the appropriate HTTP status code
// It uses MapError to convert application errors to HTTP responses
func Error(c *gin.Context, err error) {
	statusCode, errorResponse := MapError(c.Request.Context(), err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusCode, errorResponse)
}

// NotImplemented answers routes that do not exist.
func NotImplemented(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotImplemented, ErrorResponse{
		Error:     "not_implemented",
		Code:      "route.not_implemented",
		Message:   "Endpoint - " + c.Request.URL.Path + " not found",
		RequestID: logger.RequestIDFromContext(c.Request.Context()),
	})
}
