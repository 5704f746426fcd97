package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gptlisting/backend/config"
	httpDelivery "github.com/gptlisting/backend/internal/delivery/http"
	"github.com/gptlisting/backend/internal/infrastructure/assist"
	"github.com/gptlisting/backend/internal/infrastructure/audit"
	"github.com/gptlisting/backend/internal/infrastructure/cache"
	"github.com/gptlisting/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting GPTListing Pairing Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)

	// Initialize infrastructure dependencies
	resultCache := cache.NewMemoryCache()
	log.Printf("Result cache TTL: %s", cfg.Cache.TTL)

	assistClient := assist.NewClient(
		cfg.Assist.APIKey,
		cfg.Assist.BaseURL,
		cfg.Assist.Timeout,
		cfg.Assist.RequestsPerMinute,
	)

	// Enable debug mode in development environment
	if cfg.Server.Environment == "development" {
		assistClient.SetDebug(true)
		log.Printf("Assist client debug mode enabled")
	}

	if cfg.Assist.APIKey != "" {
		log.Printf("Assist service configured: %s", cfg.Assist.BaseURL)
	} else {
		log.Printf("WARNING: Assist service configured without API key: %s", cfg.Assist.BaseURL)
	}

	// Initialize usecase layer
	pairingService := usecase.NewPairingService(
		assistClient,
		audit.NewLogSink(),
		usecase.PairingServiceConfig{
			Thresholds:         cfg.Pairing.Thresholds(),
			AssistTimeout:      cfg.Assist.Timeout,
			EnableDebugLogging: cfg.Pairing.EnableDebugLogging,
		},
	)

	log.Printf("Pairing: autoPair=%.2f/%.2f hair=%.2f/%.2f minPre=%.2f debug=%v",
		cfg.Pairing.AutoPairScore, cfg.Pairing.AutoPairGap,
		cfg.Pairing.AutoPairHairScore, cfg.Pairing.AutoPairHairGap,
		cfg.Pairing.MinPreScore, cfg.Pairing.EnableDebugLogging)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(pairingService, resultCache, cfg.Cache.TTL)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
