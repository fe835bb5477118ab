package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/card-registry/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		// Read endpoints (public)
		v1.GET("/supply", handler.GetTotalSupply)
		v1.GET("/tokens/:token_id/owner", handler.GetTokenOwner)
		v1.GET("/tokens/:token_id/uri", handler.GetTokenURI)
		v1.GET("/accounts/:address/nonce", handler.GetNonce)

		// Simulation never commits (public)
		v1.POST("/simulations", handler.Simulate)

		// Signed invocations, optionally behind gateway auth
		if authCfg.Enabled() {
			v1.POST("/invocations", middleware.Auth(authCfg), handler.Invoke)
		} else {
			v1.POST("/invocations", handler.Invoke)
		}
	}
}
