package consolidate

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/testsabirweb/chat_archive/pkg/models"
)

// Config contains configuration for a consolidation run
type Config struct {
	BatchSize int
}

// DefaultConfig returns default consolidation configuration
func DefaultConfig() Config {
	return Config{
		BatchSize: 100,
	}
}

// Stats tracks the outcome of a consolidation run
type Stats struct {
	FilesFound     int
	FilesProcessed int
	FilesSkipped   int
	TotalRows      int
	KeptRows       int
	DroppedRows    int
	MalformedRows  int
	UniqueAuthors  int
	OldestMessage  time.Time
	NewestMessage  time.Time
	Errors         []error
	StartTime      time.Time
	EndTime        time.Time
}

// AddError adds an error to the stats
func (s *Stats) AddError(err error) {
	s.Errors = append(s.Errors, err)
}

// Consolidator merges heterogeneous chat export CSV files into a single
// normalized, timestamp-sorted table
type Consolidator struct {
	config Config
	logger zerolog.Logger
}

// New creates a new consolidator
func New(logger zerolog.Logger, config ...Config) *Consolidator {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return &Consolidator{
		config: cfg,
		logger: logger,
	}
}

// Run discovers export files under inputDir, merges the retained rows and
// writes the consolidated table to outputFile. A file that fails to parse
// is logged and skipped; the run continues with the remaining files.
func (c *Consolidator) Run(inputDir, outputFile string) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}

	files, err := discoverExports(inputDir)
	if err != nil {
		return stats, fmt.Errorf("failed to scan %s: %w", inputDir, err)
	}
	stats.FilesFound = len(files)

	if len(files) == 0 {
		return stats, fmt.Errorf("no CSV files found in %s", inputDir)
	}

	c.logger.Info().Int("files", len(files)).Str("dir", inputDir).Msg("found export files to process")

	var merged []models.Message
	for i, file := range files {
		c.logger.Info().
			Int("file", i+1).
			Int("of", len(files)).
			Str("name", filepath.Base(file)).
			Msg("processing export file")

		parser := NewParser(ParserConfig{
			BatchSize:  c.config.BatchSize,
			SkipErrors: true,
		})

		kept := 0
		dropped := 0
		err := parser.ParseFile(file, func(messages []models.Message, batchNum int) error {
			for _, msg := range messages {
				if !msg.Retained() {
					dropped++
					continue
				}
				merged = append(merged, msg)
				kept++
			}
			return nil
		}, func(parsed, total, errors int) {
			if total%1000 == 0 && total > 0 {
				c.logger.Debug().
					Str("name", filepath.Base(file)).
					Int("parsed", parsed).
					Int("total", total).
					Int("errors", errors).
					Msg("progress")
			}
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("name", filepath.Base(file)).Msg("skipping unreadable export file")
			stats.FilesSkipped++
			stats.AddError(fmt.Errorf("failed to process %s: %w", file, err))
			continue
		}

		total, _, malformed := parser.GetStats()
		stats.FilesProcessed++
		stats.TotalRows += total
		stats.KeptRows += kept
		stats.DroppedRows += dropped
		stats.MalformedRows += malformed
		for _, perr := range parser.GetErrors() {
			stats.AddError(perr)
		}
	}

	// Chronological order; stable so rows with equal timestamps keep
	// their discovery order and reruns stay byte-identical
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	if err := writeConsolidated(outputFile, merged); err != nil {
		return stats, err
	}

	authors := make(map[string]struct{})
	for _, msg := range merged {
		authors[msg.AuthorUsername] = struct{}{}
	}
	stats.UniqueAuthors = len(authors)
	if len(merged) > 0 {
		stats.OldestMessage = merged[0].Timestamp
		stats.NewestMessage = merged[len(merged)-1].Timestamp
	}
	stats.EndTime = time.Now()

	c.logger.Info().
		Int("messages", len(merged)).
		Int("authors", stats.UniqueAuthors).
		Str("output", outputFile).
		Msg("consolidation complete")

	return stats, nil
}

// discoverExports walks the directory tree rooted at dir and returns all
// CSV files in lexical order
func discoverExports(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// writeConsolidated writes the merged table as a single CSV file
func writeConsolidated(outputFile string, messages []models.Message) error {
	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(models.Header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, msg := range messages {
		if err := w.Write(msg.Record()); err != nil {
			f.Close()
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush output: %w", err)
	}

	return f.Close()
}
