package handlers

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/logger"
	"go.uber.org/zap"
)

const adminKeyHeader = "X-Admin-Key"

// RouterConfig holds the HTTP-level settings for NewRouter.
type RouterConfig struct {
	CORSAllowOrigins []string
	AdminAPIKey      string
}

// NewRouter builds the gin engine with logging, recovery and CORS, the
// public order route, and the admin shipping routes. shippingAdmin may be nil.
func NewRouter(cfg RouterConfig, log *zap.Logger, orders *OrdersHandler, shippingAdmin *ShippingHandler) *gin.Engine {
	r := gin.New()
	r.Use(logger.RequestID(), logger.GinMiddleware(log), logger.Recovery(log))
	if mw := corsMiddleware(cfg.CORSAllowOrigins); mw != nil {
		r.Use(mw)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	orders.Register(r)

	if shippingAdmin != nil {
		admin := r.Group("/admin/shipping", AdminKey(cfg.AdminAPIKey))
		shippingAdmin.Register(admin)
	}
	return r
}

// corsMiddleware returns nil when no origin is configured.
func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return nil
	}
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", idempotencyKeyHeader, adminKeyHeader, "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", replayedHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

// AdminKey rejects requests whose X-Admin-Key does not match key.
// An empty key leaves the routes open.
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(adminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			fail(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		c.Next()
	}
}
