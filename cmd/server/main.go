package main

import (
	"context"
	"log"
	"os"

	"github.com/Tyrowin/gamechat/internal/server"
	gfshutdown "github.com/gelmium/graceful-shutdown"
)

func main() {
	log.Println("Starting GameChat server...")

	// Load configuration from .env and the environment
	config := server.NewConfigFromEnv()
	server.SetConfig(config)
	active := server.CurrentConfig()

	log.Printf("Allowed origins: %v", active.AllowedOrigins)
	log.Printf("Invite timeout: %s, chat history: %d", active.InviteTimeout, active.ChatHistorySize)

	hub := server.NewHub()
	server.StartHub(hub)

	router := server.SetupRoutes(hub)
	httpServer := server.CreateServer(active.Port, router)

	go func() {
		if err := server.StartServer(httpServer); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// The HTTP server stops first so no new clients register with a
	// stopping hub.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		active.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				if err := server.ShutdownServer(ctx, httpServer); err != nil {
					return err
				}
				return hub.Shutdown(server.RemainingTimeout(ctx, active.ShutdownTimeout))
			},
		},
	)

	exitCode := <-wait
	log.Printf("GameChat server exited with code: %d", exitCode)
	os.Exit(exitCode)
}
