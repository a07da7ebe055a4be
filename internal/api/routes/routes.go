package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ridelink/ride-coordinator/internal/api/handlers"
	"github.com/ridelink/ride-coordinator/internal/api/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, nrApp *newrelic.Application, jwtSecret string) {
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	// Health check and metrics
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":      "healthy",
			"connections": h.Hub.ActiveConnections(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		// Open endpoints
		v1.POST("/users", h.CreateUser)
		v1.POST("/auth/token", h.IssueToken)

		auth := v1.Group("")
		auth.Use(middleware.Auth(jwtSecret))
		{
			// WebSocket connection
			auth.GET("/ws", h.HandleWebSocket)

			// User endpoints
			users := auth.Group("/users")
			{
				users.GET("/:id", h.GetUser)
				users.PUT("/:id", h.UpdateUser)
				users.DELETE("/:id", h.DeleteUser)
			}

			// Ride endpoints
			rides := auth.Group("/rides")
			{
				rides.POST("", middleware.RequireRole("rider"), h.CreateRide)
				rides.GET("", middleware.RequireRole("rider"), h.ListRides)
				rides.GET("/:id", h.GetRide)
				rides.GET("/:id/assignment", h.AwaitAssignment)
				rides.POST("/:id/cancel", h.CancelRide)
				rides.POST("/:id/verify-pin", middleware.RequireRole("driver"), h.VerifyPin)
				rides.POST("/:id/complete", middleware.RequireRole("driver"), h.CompleteRide)
			}

			// Driver endpoints
			drivers := auth.Group("/drivers")
			drivers.Use(middleware.RequireRole("driver"))
			{
				drivers.POST("/location", h.UpdateDriverLocation)
				drivers.POST("/accept", h.AcceptRide)
				drivers.POST("/reject", h.RejectRide)
				drivers.GET("/rides", h.PendingRides)
			}

			// Wallet endpoints
			wallet := auth.Group("/wallet")
			{
				wallet.POST("/recharge", h.RechargeWallet)
				wallet.POST("/withdraw", h.WithdrawWallet)
				wallet.GET("/transactions", h.ListTransactions)
			}
		}
	}
}
