// Package server implements the HTTP server functionality for the GameChat server.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"
)

// CreateServer creates and configures the HTTP server with security settings
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartHub runs the hub loop in a background goroutine.
func StartHub(h *Hub) {
	go h.Run()
}

// StartServer starts the HTTP server and blocks until it exits. A server
// closed by Shutdown is not an error.
func StartServer(server *http.Server) error {
	log.Printf("Server listening on port %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer stops accepting connections and waits for in-flight HTTP
// requests. Hijacked WebSocket connections are left to Hub.Shutdown.
func ShutdownServer(ctx context.Context, server *http.Server) error {
	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	log.Println("HTTP server stopped")
	return nil
}

// RemainingTimeout returns the time left before ctx's deadline, or fallback
// when ctx has none. An expired deadline yields a zero timeout.
func RemainingTimeout(ctx context.Context, fallback time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	if remaining := time.Until(deadline); remaining > 0 {
		return remaining
	}
	return 0
}
