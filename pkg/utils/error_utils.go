package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Standardized APIError response
type APIError struct {
	StatusCode int    `json:"-"`              // HTTP status code, not included in JSON response body for error itself
	Code       string `json:"code,omitempty"` // Application-specific error code
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
}

// NewAPIError creates a new APIError instance
func NewAPIError(statusCode int, code string, message string, details string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Details:    details,
	}
}

// RespondWithError sends a standardized JSON error response
func RespondWithError(c *gin.Context, err *APIError) {
	c.JSON(err.StatusCode, gin.H{"error": err})
	c.Abort() // Abort further processing if it's a middleware or critical error
}

// Common Error Constants
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeInternalServerError = "INTERNAL_SERVER_ERROR"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"

	// Inventory and fulfillment
	ErrCodeInsufficientStock        = "INSUFFICIENT_STOCK"
	ErrCodeMissingRequiredSelection = "MISSING_REQUIRED_SELECTION"
	ErrCodeUnavailableOption        = "UNAVAILABLE_OPTION"
	ErrCodeInvalidSelection         = "INVALID_SELECTION"
	ErrCodeDuplicateVariantKey      = "DUPLICATE_VARIANT_KEY"
	ErrCodeIllegalTransition        = "ILLEGAL_TRANSITION"
	ErrCodeTrackingConflict         = "TRACKING_CONFLICT"
	ErrCodeTrackingDisabled         = "TRACKING_DISABLED"
	ErrCodeAlreadyRefunded          = "ALREADY_REFUNDED"
)

// Helper to return a standard validation error
func RespondValidationFailed(c *gin.Context, details string) {
	RespondWithError(c, NewAPIError(http.StatusBadRequest, ErrCodeValidationFailed, "Input validation failed", details))
}
