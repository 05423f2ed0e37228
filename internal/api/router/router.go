package router

import (
	"net/http"

	"github.com/cuongbtq/trade-ledger/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "trade-ledger-api",
		})
	})

	importHandler := handler.NewImportHandler(deps)
	ledgerHandler := handler.NewLedgerHandler(deps)

	v1 := r.Group("/api/v1")
	{
		imports := v1.Group("/imports")
		{
			imports.POST("", importHandler.CreateImport)
			imports.GET("", importHandler.ListImports)
			imports.GET("/:job_id", importHandler.GetImport)
		}

		v1.GET("/investments", ledgerHandler.ListInvestments)
		v1.GET("/stocks", ledgerHandler.ListStocks)
	}

	return r
}
