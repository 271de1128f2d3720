// Package server wires HTTP handlers into a gin engine for the GameChat
// application via routing helpers.
package server

import "github.com/gin-gonic/gin"

// SetupRoutes configures and returns the router with all application routes:
// health checks, the WebSocket endpoint, Prometheus metrics and the
// read-only REST views of hub state.
func SetupRoutes(h *Hub) *gin.Engine {
	router := gin.Default()
	router.HandleMethodNotAllowed = true

	router.GET("/", HealthHandler)
	router.GET("/healthz", HealthHandler)
	router.GET("/ws", h.WebSocketHandler)
	router.GET("/metrics", gin.WrapH(h.MetricsHandler()))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/participants", h.ListParticipants)
		apiV1.GET("/chat/history", h.GetChatHistory)
		apiV1.GET("/games/:id", h.GetGameByID)
		apiV1.GET("/invites/:id", h.GetInviteByID)
	}

	return router
}
