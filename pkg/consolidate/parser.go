package consolidate

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/testsabirweb/chat_archive/pkg/models"
)

// ParserConfig contains configuration for the export CSV parser
type ParserConfig struct {
	BatchSize  int  // Number of records to process in a batch
	SkipErrors bool // Whether to skip records with errors
}

// DefaultParserConfig returns default parser configuration
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		BatchSize:  100,
		SkipErrors: true,
	}
}

// Parser handles parsing of chat export CSV files
type Parser struct {
	config        ParserConfig
	totalRecords  int
	parsedRecords int
	errorCount    int
	errors        []error
}

// NewParser creates a new export CSV parser instance
func NewParser(config ...ParserConfig) *Parser {
	cfg := DefaultParserConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return &Parser{
		config: cfg,
		errors: make([]error, 0),
	}
}

// BatchCallback is called for each batch of messages
type BatchCallback func(messages []models.Message, batchNum int) error

// ProgressCallback is called to report progress
type ProgressCallback func(parsed, total, errors int)

// fieldMapping binds a source export column to a destination field on the
// consolidated message. Each mapping is evaluated exactly once per row;
// a missing or placeholder source value yields the default.
type fieldMapping struct {
	source string
	def    string
	assign func(*models.Message, string)
}

// exportFields maps the known export columns onto the consolidated schema.
// Columns not listed here are ignored. The timestamp and attachment
// presence columns are handled separately in parseRecord.
var exportFields = []fieldMapping{
	{"id", "", func(m *models.Message, v string) { m.MessageID = v }},
	{"author.username", "", func(m *models.Message, v string) { m.AuthorUsername = v }},
	{"author.global_name", "", func(m *models.Message, v string) { m.AuthorDisplayName = v }},
	{"author.id", "", func(m *models.Message, v string) { m.AuthorID = v }},
	{"content", "", func(m *models.Message, v string) { m.Content = v }},
	{"channel_id", "", func(m *models.Message, v string) { m.ChannelID = v }},
	{"attachments.0.url", "", func(m *models.Message, v string) { m.AttachmentURL = v }},
	{"attachments.0.filename", "", func(m *models.Message, v string) { m.AttachmentFilename = v }},
	{"type", "0", func(m *models.Message, v string) { m.MessageType = v }},
	{"edited_timestamp", "", func(m *models.Message, v string) { m.EditedTimestamp = v }},
	{"message_reference.message_id", "", func(m *models.Message, v string) { m.ReferencedMessageID = v }},
}

// ParseFile parses an export CSV file with batch processing and progress tracking
func (p *Parser) ParseFile(filename string, batchCallback BatchCallback, progressCallback ProgressCallback) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.ParseWithCallbacks(file, filepath.Base(filename), batchCallback, progressCallback)
}

// ParseWithCallbacks parses export CSV data with batch processing.
// sourceFile is recorded on every message so rows stay traceable to the
// export they came from.
func (p *Parser) ParseWithCallbacks(r io.Reader, sourceFile string, batchCallback BatchCallback, progressCallback ProgressCallback) error {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true // Handle quotes in fields
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // Exports vary in column count

	// Read header
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	// Map header columns
	columnMap := make(map[string]int)
	for i, col := range header {
		columnMap[strings.TrimSpace(col)] = i
	}

	// Validate required columns
	requiredColumns := []string{"id", "timestamp"}
	for _, col := range requiredColumns {
		if _, ok := columnMap[col]; !ok {
			return fmt.Errorf("required column %s not found in CSV", col)
		}
	}

	batch := make([]models.Message, 0, p.config.BatchSize)
	batchNum := 0
	p.totalRecords = 0
	p.parsedRecords = 0
	p.errorCount = 0

	// Read records
	for {
		record, err := reader.Read()
		if err == io.EOF {
			// Process final batch
			if len(batch) > 0 {
				if err := batchCallback(batch, batchNum); err != nil {
					return fmt.Errorf("batch callback error: %w", err)
				}
			}
			break
		}
		if err != nil {
			if p.config.SkipErrors {
				p.recordError(fmt.Errorf("failed to read record %d: %w", p.totalRecords+1, err))
				p.totalRecords++
				continue
			}
			return fmt.Errorf("failed to read record: %w", err)
		}

		p.totalRecords++

		msg, err := p.parseRecord(record, columnMap, sourceFile)
		if err != nil {
			if p.config.SkipErrors {
				p.recordError(fmt.Errorf("failed to parse record %d: %w", p.totalRecords, err))
				continue
			}
			return fmt.Errorf("failed to parse record %d: %w", p.totalRecords, err)
		}

		batch = append(batch, msg)
		p.parsedRecords++

		// Process batch when full
		if len(batch) >= p.config.BatchSize {
			if err := batchCallback(batch, batchNum); err != nil {
				return fmt.Errorf("batch callback error: %w", err)
			}
			batchNum++
			batch = make([]models.Message, 0, p.config.BatchSize)
		}

		// Report progress
		if progressCallback != nil && p.totalRecords%100 == 0 {
			progressCallback(p.parsedRecords, p.totalRecords, p.errorCount)
		}
	}

	// Final progress report
	if progressCallback != nil {
		progressCallback(p.parsedRecords, p.totalRecords, p.errorCount)
	}

	return nil
}

// Parse parses all messages at once (for smaller files)
func (p *Parser) Parse(r io.Reader, sourceFile string) ([]models.Message, error) {
	var allMessages []models.Message

	err := p.ParseWithCallbacks(r, sourceFile, func(messages []models.Message, batchNum int) error {
		allMessages = append(allMessages, messages...)
		return nil
	}, nil)

	if err != nil {
		return nil, err
	}

	return allMessages, nil
}

// parseRecord converts an export CSV record to a consolidated Message
func (p *Parser) parseRecord(record []string, columnMap map[string]int, sourceFile string) (models.Message, error) {
	msg := models.Message{SourceFile: sourceFile}

	// Helper function to get a normalized field value safely
	getField := func(fieldName string) string {
		if idx, ok := columnMap[fieldName]; ok && idx < len(record) {
			return normalizeValue(record[idx])
		}
		return ""
	}

	for _, f := range exportFields {
		v := getField(f.source)
		if v == "" {
			v = f.def
		}
		f.assign(&msg, v)
	}

	// Any non-empty attachment field marks the message as attachment-bearing
	msg.HasAttachments = getField("attachments") != "" ||
		msg.AttachmentURL != "" ||
		msg.AttachmentFilename != ""

	tsStr := getField("timestamp")
	if tsStr == "" {
		return msg, fmt.Errorf("missing timestamp")
	}
	ts, err := parseTimestamp(tsStr)
	if err != nil {
		return msg, fmt.Errorf("failed to parse timestamp %s: %w", tsStr, err)
	}
	msg.Timestamp = ts

	return msg, nil
}

// normalizeValue trims a raw export value and collapses the exporter's
// textual placeholders for "no value" to the empty string, so nothing
// downstream ever has to compare against "nan" again.
func normalizeValue(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "nan", "null", "none":
		return ""
	}
	return v
}

// timestampFormats covers the mixed date-time formats seen across exports
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses an export timestamp in any of the known formats,
// including plain Unix timestamps with optional fractional seconds
func parseTimestamp(ts string) (time.Time, error) {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	// Unix timestamp, e.g. "1599934232" or "1599934232.150700"
	if secs, frac, ok := strings.Cut(ts, "."); ok {
		seconds, err1 := strconv.ParseInt(secs, 10, 64)
		micros, err2 := strconv.ParseInt(frac, 10, 64)
		if err1 == nil && err2 == nil {
			return time.Unix(0, seconds*1e9+micros*1000), nil
		}
	} else if seconds, err := strconv.ParseInt(ts, 10, 64); err == nil {
		return time.Unix(seconds, 0), nil
	}

	return time.Time{}, fmt.Errorf("invalid timestamp format: %s", ts)
}

// recordError records a parsing error
func (p *Parser) recordError(err error) {
	p.errorCount++
	p.errors = append(p.errors, err)
}

// GetErrors returns all parsing errors
func (p *Parser) GetErrors() []error {
	return p.errors
}

// GetStats returns parsing statistics
func (p *Parser) GetStats() (total, parsed, errors int) {
	return p.totalRecords, p.parsedRecords, p.errorCount
}
