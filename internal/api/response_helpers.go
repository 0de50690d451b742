// internal/api/response_helpers.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/ScriptBreakdown/internal/errors"
	"github.com/Corphon/ScriptBreakdown/internal/remote"
)

// APIResponse is the envelope of every response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError is the error part of the envelope
type APIError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Details  string `json:"details,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// ResponseHelper writes envelopes
type ResponseHelper struct{}

// NewResponseHelper creates a ResponseHelper
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success writes a 200 envelope
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// Created writes a 201 envelope
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	} else {
		response.Message = "Created"
	}

	c.JSON(http.StatusCreated, response)
}

// Accepted 202 for work the store will finish later
func (rh *ResponseHelper) Accepted(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusAccepted, &APIResponse{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	})
}

// sanitizeErrorMessage hides messages that leak credentials
func sanitizeErrorMessage(message string) string {
	lower := strings.ToLower(message)
	for _, pattern := range []string{"api_key", "secret", "bearer "} {
		if strings.Contains(lower, pattern) {
			return "An internal error occurred"
		}
	}
	return message
}

// Error writes an error envelope and aborts
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}

	if len(details) > 0 {
		apiError.Details = sanitizeErrorMessage(details[0])
	}

	rh.abort(c, statusCode, apiError)
}

func (rh *ResponseHelper) abort(c *gin.Context, statusCode int, apiError *APIError) {
	c.AbortWithStatusJSON(statusCode, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	})
}

// BadRequest writes a 400
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound writes a 404
func (rh *ResponseHelper) NotFound(c *gin.Context, resource string, details ...string) {
	rh.Error(c, http.StatusNotFound, rh.getResourceNotFoundCode(resource), resource+" not found", details...)
}

// InternalError writes a 500
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// AuthRequired 401 with the login redirect the UI follows
func (rh *ResponseHelper) AuthRequired(c *gin.Context, message string) {
	rh.abort(c, http.StatusUnauthorized, &APIError{
		Code:     ErrorAuthRequired,
		Message:  message,
		Redirect: LoginPath,
	})
}

// StoreFailure maps a failed store operation to a response. Most store
// operations only leave a message behind; err, when known, picks the status.
func (rh *ResponseHelper) StoreFailure(c *gin.Context, err error, message string) {
	if message == "" {
		message = apperrors.Message(err)
	}
	if message == "" {
		message = "Operation failed"
	}

	switch {
	case apperrors.IsUnauthorizedError(err) || message == remote.MsgAuthRequired:
		rh.AuthRequired(c, message)
	case apperrors.IsNotFoundError(err) || strings.HasSuffix(message, "not found"):
		rh.Error(c, http.StatusNotFound, ErrorNotFound, message)
	case apperrors.IsValidationError(err):
		rh.Error(c, http.StatusBadRequest, ErrorValidationFailed, message)
	default:
		rh.Error(c, http.StatusBadGateway, ErrorRemoteFailed, message)
	}
}

// getRequestID returns the id set by RequestID
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// getResourceNotFoundCode maps a resource name to its not-found code
func (rh *ResponseHelper) getResourceNotFoundCode(resource string) string {
	switch strings.ToLower(resource) {
	case "project":
		return ErrorProjectNotFound
	case "script":
		return ErrorScriptNotFound
	default:
		return ErrorNotFound
	}
}
