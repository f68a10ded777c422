package api

import (
	// Go Internal Packages
	"net/http"

	// External Packages
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter registers the wallet routes. Every entry of metrics is mounted as a
// GET route serving a prometheus exposition.
func NewRouter(h *Handler, logger *zap.Logger, metrics map[string]http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(Recovery(logger), RequestID(), Logger(logger))

	router.POST("/clients", h.RegisterClient)
	router.POST("/recharge", h.Recharge)
	router.POST("/pay", h.InitiatePayment)
	router.POST("/confirm-payment", h.ConfirmPayment)
	router.GET("/balance", h.Balance)
	router.GET("/health", h.HealthCheck)

	for path, handler := range metrics {
		router.GET(path, gin.WrapH(handler))
	}
	return router
}
