package quotes

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ksred/brokerage-api/pkg/response"
)

// GinHandlers contains HTTP handlers for quote endpoints.
type GinHandlers struct {
	gateway Gateway
}

// NewGinHandlers creates a new set of HTTP handlers over the given price
// gateway.
func NewGinHandlers(gateway Gateway) *GinHandlers {
	return &GinHandlers{
		gateway: gateway,
	}
}

// QuoteHandler handles GET requests for a live quote.
// URL parameter: symbol
func (h *GinHandlers) QuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		quote, err := h.gateway.GetQuote(c.Request.Context(), c.Param("symbol"))
		switch {
		case err == nil:
			response.Success(c, quote)
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "Symbol not found")
		case errors.Is(err, ErrUnavailable):
			response.BadGateway(c, "Quote source unavailable")
		default:
			response.InternalError(c, "An unexpected error occurred")
		}
	}
}
