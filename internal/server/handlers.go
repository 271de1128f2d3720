// Package server exposes HTTP handlers: the WebSocket upgrade, health checks
// and read-only views of hub state.
package server

import (
	"errors"
	"log"
	"net/http"

	apperrors "github.com/Tyrowin/gamechat/internal/errors"
	"github.com/gin-gonic/gin"
)

const healthText = "GameChat server is running!"

// WebSocketHandler upgrades the request, creates a Client and registers it
// with the hub, which launches the pump goroutines. The router only sends
// GET requests here.
func (h *Hub) WebSocketHandler(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, h, c.Request.RemoteAddr)

	select {
	case h.register <- client:
	case <-h.done:
		log.Printf("Hub stopped; closing connection from %s", client.addr)
		_ = conn.Close()
	}
}

// HealthHandler responds with a plain text message indicating the server is running.
func HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, healthText)
}

// ListParticipants returns everyone online, in join order.
func (h *Hub) ListParticipants(c *gin.Context) {
	participants, err := h.Participants(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

// GetChatHistory returns the bounded chat history, oldest first.
func (h *Hub) GetChatHistory(c *gin.Context) {
	events, err := h.ChatHistory(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatHistory": events})
}

// GetGameByID returns one game instance.
func (h *Hub) GetGameByID(c *gin.Context) {
	instance, err := h.Game(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, instance)
}

// GetInviteByID returns one invite in any state.
func (h *Hub) GetInviteByID(c *gin.Context) {
	inv, err := h.Invite(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// httpStatus maps a domain error kind to a response status.
func httpStatus(err error) int {
	if errors.Is(err, ErrHubStopped) {
		return http.StatusServiceUnavailable
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindInvalidState, apperrors.KindAlreadyJoined:
		return http.StatusConflict
	case apperrors.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{
		"error": apperrors.MessageOf(err),
		"code":  string(apperrors.CodeOf(err)),
	})
}
