package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alem-hub/guild-leveling/internal/domain/shared"
)

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
}

// Error codes.
const (
	CodeValidation          = "validation_error"
	CodeNotFound            = "not_found"
	CodeInsufficientBalance = "insufficient_balance"
	CodeNotReady            = "not_ready"
	CodeStore               = "store_error"
	CodeRateLimited         = "rate_limit_exceeded"
	CodeInternal            = "internal_server_error"
)

// OK writes a success envelope.
func OK(c *gin.Context, status int, data interface{}) {
	OKWithMeta(c, status, data, nil)
}

// OKWithMeta writes a success envelope with custom metadata.
func OKWithMeta(c *gin.Context, status int, data interface{}, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"

	c.JSON(status, JSONResponse{
		Success:   true,
		Data:      data,
		Meta:      meta,
		RequestID: RequestIDFrom(c),
	})
}

// Fail writes an error envelope and aborts the chain.
func Fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: RequestIDFrom(c),
	})
}

// StatusFor maps an engine error to an HTTP status and error code.
func StatusFor(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, CodeValidation
	case shared.IsNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case shared.IsInsufficientBalance(err):
		return http.StatusConflict, CodeInsufficientBalance
	case shared.IsNotReady(err):
		return http.StatusServiceUnavailable, CodeNotReady
	case shared.IsStore(err):
		return http.StatusBadGateway, CodeStore
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// FailWith writes the envelope for an engine error. Store and unknown
// failures hide the underlying message.
func FailWith(c *gin.Context, err error) {
	status, code := StatusFor(err)
	message := err.Error()
	var de *shared.DomainError
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		message = http.StatusText(status)
	case errors.As(err, &de):
		message = de.Message
	}
	_ = c.Error(err)
	Fail(c, status, code, message)
}
