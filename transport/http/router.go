package http

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter sets up the Gin router
func SetupRouter(h *Handlers) *gin.Engine {
	router := gin.Default()
	router.SetHTMLTemplate(templates)
	router.Use(SessionMiddleware(h.bridge, h.opts.SecureCookies))

	router.GET("/", h.Index)
	router.GET("/healthz", h.Health)
	router.GET("/.well-known/jwks.json", h.JWKS)

	auth := router.Group("/auth")
	{
		auth.GET("/nonce", h.Nonce)
		auth.POST("/signin", h.SignIn)
		auth.GET("/signin/status", h.SignInStatus)
		auth.POST("/signout", h.SignOut)
	}

	api := router.Group("/api")
	{
		api.POST("/login", h.Login)
		api.GET("/me", RequireSession(), h.Me)
	}

	// Wallet actions answer ProviderNotReady without a session
	wallet := router.Group("/wallet")
	{
		wallet.POST("/address", h.Address)
		wallet.POST("/balance", h.Balance)
		wallet.POST("/sign", h.Sign)
		wallet.POST("/send", h.Send)
	}

	return router
}
