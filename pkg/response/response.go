package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ksred/brokerage-api/internal/types"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Common error codes
const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeDuplicateResource  = "DUPLICATE_RESOURCE"
	ErrCodeUnknownSymbol      = "UNKNOWN_SYMBOL"
	ErrCodeQuoteUnavailable   = "QUOTE_UNAVAILABLE"
	ErrCodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrCodeInsufficientShares = "INSUFFICIENT_SHARES"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeStorageFailure     = "STORAGE_FAILURE"
	ErrCodeRateLimited        = "RATE_LIMITED"
)

// Handle maps a service result onto the response envelope. Order errors
// carry structured context (required vs available funds, requested vs held
// shares) so the presentation layer can render a precise message; the
// engine itself never produces user-facing copy.
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	var fundsErr *types.InsufficientFundsError
	var sharesErr *types.InsufficientSharesError

	switch {
	case errors.Is(err, types.ErrInvalidQuantity), errors.Is(err, types.ErrInvalidSymbol):
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
	case errors.Is(err, types.ErrUnknownSymbol):
		fail(c, http.StatusNotFound, ErrCodeUnknownSymbol, "Symbol not found", nil)
	case errors.Is(err, types.ErrQuoteUnavailable):
		fail(c, http.StatusBadGateway, ErrCodeQuoteUnavailable, "Quote source unavailable", nil)
	case errors.As(err, &fundsErr):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInsufficientFunds, "Insufficient funds", gin.H{
			"required_cents":  fundsErr.RequiredCents,
			"available_cents": fundsErr.AvailableCents,
		})
	case errors.As(err, &sharesErr):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInsufficientShares, "Insufficient shares", gin.H{
			"symbol":    sharesErr.Symbol,
			"requested": sharesErr.Requested,
			"held":      sharesErr.Held,
		})
	case errors.Is(err, types.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, "Order conflicted with a concurrent request, please retry", nil)
	case errors.Is(err, types.ErrStorage):
		fail(c, http.StatusInternalServerError, ErrCodeStorageFailure, "Storage failure", nil)
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, ErrCodeNotFound, message, nil)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, message, nil)
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, message, nil)
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	fail(c, http.StatusForbidden, ErrCodeForbidden, message, nil)
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	fail(c, http.StatusInternalServerError, ErrCodeInternalError, message, nil)
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	fail(c, http.StatusConflict, ErrCodeDuplicateResource, message, nil)
}

// TooManyRequests sends a 429 response
func TooManyRequests(c *gin.Context, message string) {
	fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, message, nil)
}

// BadGateway sends a 502 response
func BadGateway(c *gin.Context, message string) {
	fail(c, http.StatusBadGateway, ErrCodeQuoteUnavailable, message, nil)
}

func fail(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
