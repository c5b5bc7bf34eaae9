package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sellvid/backend/internal/animation"
	"github.com/sellvid/backend/internal/api"
	"github.com/sellvid/backend/internal/config"
	"github.com/sellvid/backend/internal/db"
	"github.com/sellvid/backend/internal/queue"
	"github.com/sellvid/backend/internal/render"
	"github.com/sellvid/backend/internal/services"
	"github.com/sellvid/backend/internal/storage"
	"github.com/sellvid/backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer q.Close()

	store, err := storage.New(ctx, storage.Options{
		Endpoint:   cfg.S3Endpoint,
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		PresignTTL: time.Duration(cfg.PresignTTLSecs) * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	var providers []animation.Provider
	if cfg.SeedanceAPIKey != "" {
		providers = append(providers, animation.NewSeedance(cfg.SeedanceAPIKey, cfg.SeedanceBaseURL))
	}
	if cfg.VeoAPIKey != "" {
		veo, err := animation.NewVeo(ctx, cfg.VeoAPIKey, cfg.VeoModel)
		if err != nil {
			log.Fatalf("Failed to initialize veo provider: %v", err)
		}
		providers = append(providers, veo)
	}
	if len(providers) == 0 {
		log.Fatalf("No animation providers configured")
	}

	defaultProvider := providers[0].Name()
	registry, err := animation.NewRegistry(defaultProvider, providers...)
	if err != nil {
		log.Fatalf("Failed to build provider registry: %v", err)
	}
	log.Printf("Animation providers: %v (default %s)", registry.Names(), defaultProvider)

	if cfg.WorkerEnabled {
		ffmpeg, err := services.NewFFmpeg(cfg.TempDir)
		if err != nil {
			log.Fatalf("Failed to initialize ffmpeg: %v", err)
		}

		w := worker.New(worker.Config{
			Store:       database,
			Queue:       q,
			Objects:     store,
			Planner:     services.NewPlanner(cfg.OpenAIKey),
			Imager:      services.NewImageGenerator(cfg.GeminiKey),
			Providers:   registry,
			Renderer:    render.New(store, ffmpeg),
			Concurrency: cfg.BatchConcurrency,
			PollLoops:   cfg.WorkerPollQueues,
		})
		go w.Start(ctx)
	}

	handlers := api.NewHandlers(database, q, store, registry)
	router := api.NewRouter(handlers, cfg.BackendAPIKey, cfg.CorsAllowedOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // batch ZIP downloads stream
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("API listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
