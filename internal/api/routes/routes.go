package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/soriai/sori/internal/api/handlers"
	"github.com/soriai/sori/internal/api/middleware"
)

type Deps struct {
	WS    *handlers.WSHandler
	Admin *handlers.AdminHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	// WebSocket voice relay
	auth.GET("/ws", d.WS.Voice)

	// Operator console
	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())

	admin.GET("/chatbots", d.Admin.ListChatbots)
	admin.GET("/chatbots/:chatbot_id", d.Admin.GetChatbot)
	admin.POST("/chatbots", d.Admin.SaveChatbot)
	admin.DELETE("/chatbots/:chatbot_id", d.Admin.DeleteChatbot)

	admin.GET("/logs", d.Admin.ListLogs)
	admin.GET("/logs/search", d.Admin.SearchMessages)
}
