package orders

import (
	"github.com/gin-gonic/gin"

	"github.com/ksred/brokerage-api/internal/auth"
	"github.com/ksred/brokerage-api/internal/types"
	"github.com/ksred/brokerage-api/pkg/response"
)

// GinHandlers contains HTTP handlers for order, portfolio, and history
// endpoints.
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for the order
// endpoints.
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// BuyHandler handles POST requests to buy shares.
// Requires a valid JWT token; request body carries symbol and share count.
func (h *GinHandlers) BuyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		var req types.OrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		txn, err := h.service.ExecuteBuy(c.Request.Context(), userID, req.Symbol, req.Shares)
		response.Handle(c, txn, err)
	}
}

// SellHandler handles POST requests to sell shares.
// Requires a valid JWT token; request body carries symbol and share count.
func (h *GinHandlers) SellHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		var req types.OrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		txn, err := h.service.ExecuteSell(c.Request.Context(), userID, req.Symbol, req.Shares)
		response.Handle(c, txn, err)
	}
}

// PortfolioHandler handles GET requests for the current portfolio
// snapshot: every open position valued at its live quote, plus cash.
func (h *GinHandlers) PortfolioHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		snapshot, err := h.service.GetPortfolioSnapshot(c.Request.Context(), userID)
		response.Handle(c, snapshot, err)
	}
}

// HistoryHandler handles GET requests for the user's full trade history.
func (h *GinHandlers) HistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		history, err := h.service.GetHistory(userID)
		response.Handle(c, history, err)
	}
}

func requireUser(c *gin.Context) (string, bool) {
	claims, exists := c.Get("claims")
	if !exists {
		response.Unauthorized(c, "Missing authentication claims")
		return "", false
	}

	userID := auth.GetUserID(claims)
	if userID == "" {
		response.Unauthorized(c, "Invalid user ID in token")
		return "", false
	}
	return userID, true
}
