package consolidate

import (
	"strings"
	"testing"
	"time"

	"github.com/testsabirweb/chat_archive/pkg/models"
)

func TestNewParser(t *testing.T) {
	// Test with default config
	parser := NewParser()
	if parser.config.BatchSize != 100 {
		t.Errorf("Expected default batch size 100, got %d", parser.config.BatchSize)
	}
	if !parser.config.SkipErrors {
		t.Error("Expected default SkipErrors to be true")
	}

	// Test with custom config
	parser2 := NewParser(ParserConfig{BatchSize: 50, SkipErrors: false})
	if parser2.config.BatchSize != 50 {
		t.Errorf("Expected batch size 50, got %d", parser2.config.BatchSize)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name      string
		timestamp string
		wantErr   bool
	}{
		{
			name:      "ISO 8601 with offset",
			timestamp: "2021-03-04T12:30:45.123000+00:00",
			wantErr:   false,
		},
		{
			name:      "ISO 8601 UTC",
			timestamp: "2021-03-04T12:30:45Z",
			wantErr:   false,
		},
		{
			name:      "ISO 8601 without offset",
			timestamp: "2021-03-04T12:30:45.123456",
			wantErr:   false,
		},
		{
			name:      "Space-separated datetime",
			timestamp: "2021-03-04 12:30:45",
			wantErr:   false,
		},
		{
			name:      "Date only",
			timestamp: "2021-03-04",
			wantErr:   false,
		},
		{
			name:      "Unix timestamp with microseconds",
			timestamp: "1599934232.150700",
			wantErr:   false,
		},
		{
			name:      "Unix timestamp seconds only",
			timestamp: "1599934232",
			wantErr:   false,
		},
		{
			name:      "Invalid format - not a date",
			timestamp: "abc.def",
			wantErr:   true,
		},
		{
			name:      "Invalid format - empty string",
			timestamp: "",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := parseTimestamp(tt.timestamp)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseTimestamp() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && ts.IsZero() {
				t.Error("parseTimestamp() returned zero time for valid timestamp")
			}
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Plain value", "hello", "hello"},
		{"Trims whitespace", "  hello ", "hello"},
		{"Lowercase nan placeholder", "nan", ""},
		{"Uppercase NaN placeholder", "NaN", ""},
		{"Null placeholder", "null", ""},
		{"None placeholder", "None", ""},
		{"Empty", "", ""},
		{"Value containing nan", "banana", "banana"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeValue(tt.input); got != tt.want {
				t.Errorf("normalizeValue(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

const sampleExport = `id,timestamp,author.username,author.global_name,author.id,content,channel_id,attachments,attachments.0.url,attachments.0.filename,type,edited_timestamp,message_reference.message_id
101,2021-03-04T10:00:00.000000+00:00,alice,Alice A,1,hello there,555,,,,0,,
102,2021-03-04T10:01:00.000000+00:00,bob,nan,2,,555,"[{'id': '9'}]",https://cdn.example.com/cat.png,cat.png,0,,101
103,2021-03-04T10:02:00.000000+00:00,alice,Alice A,1,edited one,555,,,,19,2021-03-04T10:05:00+00:00,
`

func TestParseFieldMapping(t *testing.T) {
	parser := NewParser()
	messages, err := parser.Parse(strings.NewReader(sampleExport), "export.csv")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(messages))
	}

	first := messages[0]
	if first.MessageID != "101" {
		t.Errorf("Expected message ID 101, got %s", first.MessageID)
	}
	if first.AuthorUsername != "alice" || first.AuthorDisplayName != "Alice A" || first.AuthorID != "1" {
		t.Errorf("Unexpected author fields: %+v", first)
	}
	if first.Content != "hello there" {
		t.Errorf("Expected content 'hello there', got %q", first.Content)
	}
	if first.ChannelID != "555" {
		t.Errorf("Expected channel 555, got %s", first.ChannelID)
	}
	if first.HasAttachments {
		t.Error("Expected no attachments on first message")
	}
	if first.MessageType != "0" {
		t.Errorf("Expected message type 0, got %s", first.MessageType)
	}
	if first.SourceFile != "export.csv" {
		t.Errorf("Expected source file export.csv, got %s", first.SourceFile)
	}
	want := time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC)
	if !first.Timestamp.Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, first.Timestamp)
	}

	second := messages[1]
	if !second.HasAttachments {
		t.Error("Expected attachments on second message")
	}
	if second.AttachmentURL != "https://cdn.example.com/cat.png" || second.AttachmentFilename != "cat.png" {
		t.Errorf("Unexpected attachment fields: %+v", second)
	}
	// "nan" display name normalizes to empty at the mapping boundary
	if second.AuthorDisplayName != "" {
		t.Errorf("Expected empty display name, got %q", second.AuthorDisplayName)
	}
	if second.ReferencedMessageID != "101" {
		t.Errorf("Expected reference 101, got %s", second.ReferencedMessageID)
	}

	third := messages[2]
	if third.MessageType != "19" {
		t.Errorf("Expected message type 19, got %s", third.MessageType)
	}
	if third.EditedTimestamp == "" {
		t.Error("Expected edited timestamp to be preserved")
	}
}

func TestParseSkipsMalformedRows(t *testing.T) {
	data := `id,timestamp,author.username,content
1,2021-03-04T10:00:00Z,alice,hi
2,not-a-timestamp,bob,bad row
3,2021-03-04T10:02:00Z,carol,bye
`
	parser := NewParser()
	messages, err := parser.Parse(strings.NewReader(data), "export.csv")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}

	total, parsed, errors := parser.GetStats()
	if total != 3 || parsed != 2 || errors != 1 {
		t.Errorf("Unexpected stats: total=%d parsed=%d errors=%d", total, parsed, errors)
	}
	if len(parser.GetErrors()) != 1 {
		t.Errorf("Expected 1 recorded error, got %d", len(parser.GetErrors()))
	}
}

func TestParseMissingTimestampIsMalformed(t *testing.T) {
	data := `id,timestamp,author.username,content
1,,alice,hi
`
	parser := NewParser()
	messages, err := parser.Parse(strings.NewReader(data), "export.csv")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("Expected 0 messages, got %d", len(messages))
	}
	if _, _, errors := parser.GetStats(); errors != 1 {
		t.Errorf("Expected 1 error, got %d", errors)
	}
}

func TestParseRequiredColumns(t *testing.T) {
	data := `text,user,ts
hello,alice,2021-03-04T10:00:00Z
`
	parser := NewParser()
	if _, err := parser.Parse(strings.NewReader(data), "export.csv"); err == nil {
		t.Error("Expected error for missing required columns")
	}
}

func TestParseBatching(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id,timestamp,author.username,content\n")
	for i := 0; i < 25; i++ {
		sb.WriteString("1,2021-03-04T10:00:00Z,alice,hi\n")
	}

	parser := NewParser(ParserConfig{BatchSize: 10, SkipErrors: true})
	batches := 0
	rows := 0
	err := parser.ParseWithCallbacks(strings.NewReader(sb.String()), "export.csv",
		func(messages []models.Message, batchNum int) error {
			batches++
			rows += len(messages)
			return nil
		}, nil)
	if err != nil {
		t.Fatalf("ParseWithCallbacks() error = %v", err)
	}
	if batches != 3 {
		t.Errorf("Expected 3 batches, got %d", batches)
	}
	if rows != 25 {
		t.Errorf("Expected 25 rows, got %d", rows)
	}
}
