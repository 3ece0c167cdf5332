package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Desarso/chatrelay/api"
	"github.com/Desarso/chatrelay/config"
	"github.com/Desarso/chatrelay/encryption"
	"github.com/Desarso/chatrelay/gemini"
	"github.com/Desarso/chatrelay/retention"
	"github.com/Desarso/chatrelay/stores"
)

func main() {
	cfg := config.Load()

	store, err := stores.NewStore(cfg.StoreType, cfg.StoreDSN)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	generator, err := gemini.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiSearchEnabled)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}

	registry := encryption.NewKeyRegistry(cfg.EncryptionEnabled, cfg.AESKeyHash, encryption.Mode(cfg.EncryptionMode))

	server := api.NewServer(store, generator, registry, cfg.RequestTimeout(), cfg.APIToken)

	job := retention.NewJob(store, cfg.RetentionSchedule, cfg.RetentionMaxAgeDays)
	if err := job.Start(); err != nil {
		log.Fatalf("Failed to start retention job: %v", err)
	}
	defer job.Stop()

	httpServer := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("Listening on %s", cfg.ServerAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	log.Printf("Server stopped")
}
