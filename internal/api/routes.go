package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamhaven-session-go/internal/db"
	"streamhaven-session-go/internal/middleware"
	"streamhaven-session-go/internal/session"
)

// SetupRoutes configures all application routes. Global middleware (logging,
// recovery, CORS) is expected to be applied to the router before this is
// called, typically in main.go.
func SetupRoutes(router *gin.Engine, logger *zap.Logger, controller *session.Controller) {
	firebaseAuthClient := db.GetFirebaseAuthClient()
	if firebaseAuthClient == nil {
		logger.Fatal("Firebase Auth client is not initialized; routes cannot be secured")
	}
	authMW := middleware.NewAuthMiddleware(firebaseAuthClient, logger)

	sessionHandler := NewSessionHandler(controller, logger)
	bookmarkHandler := NewBookmarkHandler(controller, logger)
	billingHandler := NewBillingHandler(controller, logger)

	apiV1 := router.Group("/api/v1")
	{
		// Login carries its token in the body and must stay reachable without
		// an established session; everything else requires a valid ID token.
		sessionGroup := apiV1.Group("/session")
		{
			sessionGroup.POST("/login", sessionHandler.Login)
			sessionGroup.POST("/logout", authMW.VerifyToken(), sessionHandler.Logout)
			sessionGroup.GET("", authMW.VerifyToken(), sessionHandler.GetSession)
			sessionGroup.PUT("/theme", authMW.VerifyToken(), sessionHandler.SetTheme)
			sessionGroup.PUT("/language", authMW.VerifyToken(), sessionHandler.SetLanguage)
			sessionGroup.POST("/refresh", authMW.VerifyToken(), sessionHandler.RefreshSubscription)
		}

		presenceGroup := apiV1.Group("/presence")
		{
			presenceGroup.POST("/visibility", authMW.VerifyToken(), sessionHandler.SetVisibility)
			// Teardown hooks fire while the page is unloading; requiring a
			// token here would make the best-effort signal fail exactly when
			// it matters most.
			presenceGroup.POST("/teardown", sessionHandler.SignalTeardown)
		}

		bookmarksGroup := apiV1.Group("/bookmarks", authMW.VerifyToken())
		{
			bookmarksGroup.GET("", bookmarkHandler.List)
			bookmarksGroup.POST("/toggle", bookmarkHandler.Toggle)
		}

		billingGroup := apiV1.Group("/billing", authMW.VerifyToken())
		{
			billingGroup.POST("/redeem", billingHandler.RedeemCoupon)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "StreamHaven session engine is healthy."})
	})

	logger.Info("API routes configured successfully under /api/v1 and /health.")
}
