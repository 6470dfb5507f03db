package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adfharrison1/go-securedocs/pkg/config"
	"github.com/adfharrison1/go-securedocs/pkg/server"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.LookupEnv)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("ERROR: Invalid configuration: %v", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.NewServer(startCtx, cfg)
	cancelStart()
	if err != nil {
		log.Fatalf("ERROR: Startup failed: %v", err)
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting go-securedocs server on :%s", cfg.Port)
		log.Printf("API endpoints available at http://localhost:%s/collections", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}

	// Flush and disconnect the backend once no request can touch it
	if err := srv.Close(ctx); err != nil {
		log.Printf("ERROR: Closing %s backend: %v", cfg.Backend, err)
	}

	log.Println("Server exited")
}
