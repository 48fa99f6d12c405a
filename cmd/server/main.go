package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/testsabirweb/chat_archive/internal/config"
	"github.com/testsabirweb/chat_archive/internal/logging"
	"github.com/testsabirweb/chat_archive/pkg/store"
	"github.com/testsabirweb/chat_archive/pkg/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using system env variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().Msg("starting chat archive server")

	// The store loads lazily on first request; try an eager load so a
	// missing consolidated file is visible at startup rather than on the
	// first page view.
	st := store.New(cfg.Data.OutputFile)
	if ok, err := st.Load(); err != nil {
		logger.Fatal().Err(err).Msg("failed to load chat data")
	} else if !ok {
		logger.Warn().Str("path", cfg.Data.OutputFile).Msg("consolidated file not found; run the consolidate command first")
	} else {
		logger.Info().Int("messages", st.Count()).Msg("chat data loaded")
	}

	server := web.NewServer(st, logger)

	// Setup HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
