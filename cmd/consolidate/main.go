package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/testsabirweb/chat_archive/internal/config"
	"github.com/testsabirweb/chat_archive/internal/logging"
	"github.com/testsabirweb/chat_archive/pkg/consolidate"
)

func main() {
	// Define command-line flags
	var (
		inputDir   = flag.String("input", "", "Directory to scan recursively for export CSV files (default: CHAT_INPUT_DIR)")
		outputFile = flag.String("output", "", "Path of the consolidated CSV file to write (default: CHAT_OUTPUT_FILE)")
		batchSize  = flag.Int("batch-size", 100, "Number of rows to process in each batch")
		help       = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}

	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using system env variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *inputDir == "" {
		*inputDir = cfg.Data.InputDir
	}
	if *outputFile == "" {
		*outputFile = cfg.Data.OutputFile
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	consolidator := consolidate.New(logger, consolidate.Config{
		BatchSize: *batchSize,
	})

	startTime := time.Now()
	stats, err := consolidator.Run(*inputDir, *outputFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("consolidation failed")
	}

	// Print results
	duration := time.Since(startTime)
	fmt.Println("\n=== Consolidation Complete ===")
	fmt.Printf("Duration: %s\n", duration.Round(time.Second))
	fmt.Printf("Files found: %d\n", stats.FilesFound)
	fmt.Printf("Files processed: %d\n", stats.FilesProcessed)
	fmt.Printf("Files skipped: %d\n", stats.FilesSkipped)
	fmt.Printf("Rows read: %d\n", stats.TotalRows)
	fmt.Printf("Messages kept: %d\n", stats.KeptRows)
	fmt.Printf("Rows dropped (no content or attachments): %d\n", stats.DroppedRows)
	fmt.Printf("Rows dropped (malformed): %d\n", stats.MalformedRows)
	fmt.Printf("Unique authors: %d\n", stats.UniqueAuthors)
	if !stats.OldestMessage.IsZero() {
		fmt.Printf("Date range: %s to %s\n",
			stats.OldestMessage.Format("2006-01-02"),
			stats.NewestMessage.Format("2006-01-02"))
	}
	fmt.Printf("Output: %s\n", *outputFile)

	if len(stats.Errors) > 0 {
		fmt.Printf("\nErrors encountered: %d\n", len(stats.Errors))
		// Show first 10 errors
		for i, err := range stats.Errors {
			if i >= 10 {
				fmt.Printf("... and %d more errors\n", len(stats.Errors)-10)
				break
			}
			fmt.Printf("  - %v\n", err)
		}
	}
}

func printUsage() {
	fmt.Println("Chat Archive Consolidation Tool")
	fmt.Println("\nMerges chat export CSV files into one normalized, timestamp-sorted table.")
	fmt.Println("\nUsage:")
	fmt.Println("  consolidate [options]")
	fmt.Println("\nOptions:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Println("  # Consolidate using CHAT_INPUT_DIR / CHAT_OUTPUT_FILE")
	fmt.Println("  consolidate")
	fmt.Println("\n  # Consolidate a specific export directory")
	fmt.Println("  consolidate -input exports/ -output data/consolidated_chat.csv")
}
