package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/trade-ledger/internal/api/dto"
	"github.com/cuongbtq/trade-ledger/internal/api/storage"
	"github.com/gin-gonic/gin"
)

// ListInvestments handles GET /api/v1/investments
// Returns the net quantity and value held per user and stock
func (h *LedgerHandler) ListInvestments(c *gin.Context) {
	var req dto.ListInvestmentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	investments, err := h.ledger.ListInvestments(c.Request.Context(), storage.InvestmentFilter{
		UserID:      req.UserID,
		StockSymbol: req.StockSymbol,
	})
	if err != nil {
		h.logger.Error("Failed to list investments", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list investments",
		})
		return
	}

	out := make([]dto.InvestmentDTO, len(investments))
	for i, inv := range investments {
		out[i] = dto.InvestmentDTO{
			UserID:        inv.UserID,
			StockSymbol:   inv.StockSymbol,
			TotalQuantity: inv.Quantity,
			TotalValue:    inv.TotalValue(),
		}
	}

	c.JSON(http.StatusOK, out)
}

// ListStocks handles GET /api/v1/stocks
func (h *LedgerHandler) ListStocks(c *gin.Context) {
	stocks, err := h.ledger.ListStocks(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list stocks", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list stocks",
		})
		return
	}

	out := make([]dto.StockDTO, len(stocks))
	for i, s := range stocks {
		out[i] = dto.StockDTO{ID: s.ID, Name: s.Name, Symbol: s.Symbol, Price: s.Price}
	}

	c.JSON(http.StatusOK, out)
}
