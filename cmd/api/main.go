package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/unibox-design/reelforge/internal/api"
	"github.com/unibox-design/reelforge/internal/config"
	"github.com/unibox-design/reelforge/internal/render"
	"github.com/unibox-design/reelforge/internal/services"
	"github.com/unibox-design/reelforge/internal/storage"
)

func main() {
	log.Println("Starting ReelForge API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	videoDir := filepath.Join(cfg.OutputDir, "videos")
	if err := os.MkdirAll(videoDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	// Initialize services
	openaiSvc := services.NewOpenAIService(cfg.OpenAIKey)
	pexelsSvc := services.NewPexelsService(cfg.PexelsKey)
	ffmpegSvc := services.NewFFmpegService(filepath.Join(cfg.OutputDir, "tmp"))

	// Speech provider — ElevenLabs when configured, Gemini otherwise
	var synth services.Synthesizer
	if cfg.ElevenLabsKey != "" {
		synth = services.NewElevenLabsService(cfg.ElevenLabsKey)
		log.Println("TTS provider: ElevenLabs (model: eleven_flash_v2_5)")
	} else {
		synth, err = services.NewGeminiTTSService(cfg.GeminiKey, cfg.GeminiTTSModel, cfg.TTSMaxChars)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini TTS: %v", err)
		}
		log.Printf("TTS provider: Gemini (model: %s)", cfg.GeminiTTSModel)
	}

	// Redis mirror is optional; status polls fall back to memory only
	var mirror *render.Mirror
	if cfg.RedisURL != "" {
		mirror, err = render.NewMirror(cfg.RedisURL, cfg.JobRetention)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer mirror.Close()
		log.Println("Connected to Redis job mirror")
	}

	// Supabase publishing is optional; without it videos are served locally
	var publisher render.Publisher
	if cfg.SupabaseURL != "" {
		publisher = storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		log.Printf("Initialized Supabase storage (bucket: %s)", cfg.SupabaseStorageBucket)
	}

	compositor := render.NewCompositor(ffmpegSvc, synth, openaiSvc, pexelsSvc,
		filepath.Join(cfg.OutputDir, "media-cache"), cfg.StageTimeout)
	controller := render.NewController(render.NewRegistry(), compositor, ffmpegSvc, render.ControllerOptions{
		OutputDir:         videoDir,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		StageTimeout:      cfg.StageTimeout,
		Mirror:            mirror,
		Publisher:         publisher,
	})

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	controller.StartSweeper(sweepCtx, 10*time.Minute, cfg.JobRetention)

	// Create API handler
	handler := api.NewHandler(controller, openaiSvc, pexelsSvc)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		VideoDir:           videoDir,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Let running pipelines reach their next checkpoint
	if err := controller.Shutdown(ctx); err != nil {
		log.Printf("Shutdown timed out waiting for render jobs: %v", err)
	}

	log.Println("Server exited")
}
