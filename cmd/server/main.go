package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/veridoc/internal/api"
	"github.com/dgallion1/veridoc/internal/chunker"
	"github.com/dgallion1/veridoc/internal/config"
	"github.com/dgallion1/veridoc/internal/corpus"
	"github.com/dgallion1/veridoc/internal/gemini"
	"github.com/dgallion1/veridoc/internal/store"
	"github.com/dgallion1/veridoc/internal/verify"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the grounding service client and the services on top.
	client := gemini.NewClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey)

	ch := chunker.New(chunker.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	}, nil)

	vf := verify.New(client, verify.Config{
		Model:      cfg.VerifyModel,
		BatchSize:  cfg.BatchSize,
		ChunkDelay: cfg.ChunkDelay,
		BatchDelay: cfg.BatchDelay,
		MaxRetries: cfg.MaxRetries,
		ScoreMin:   cfg.ScoreMin,
		ScoreMax:   cfg.ScoreMax,
	}, log)

	cm := corpus.New(client, corpus.Config{
		MetadataModel: cfg.MetadataModel,
	}, log)

	sessions := store.NewSessionStore(cfg.DocumentTTL)

	// Evict idle sessions and tear down the stores they held.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, storeName := range sessions.Cleanup() {
					if err := cm.DeleteStore(ctx, storeName); err != nil {
						log.Warn("orphaned store cleanup failed", "store", storeName, "error", err)
					}
				}
			}
		}
	}()

	srv := api.NewServer(sessions, ch, vf, cm, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // verification runs are synchronous and slow
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		cancel()
		client.Close()
	}()

	log.Info("starting veridoc", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
