package consolidate

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	return rows
}

func TestRunMergesAndSorts(t *testing.T) {
	dir := t.TempDir()

	// Newer messages in the first (lexically) file, older in a nested one
	writeFile(t, filepath.Join(dir, "a.csv"),
		`id,timestamp,author.username,content
2,2021-03-04T10:05:00Z,bob,second
3,2021-03-04T10:10:00Z,alice,third
`)
	writeFile(t, filepath.Join(dir, "nested", "b.csv"),
		`id,timestamp,author.username,content,attachments.0.filename
1,2021-03-04T10:00:00Z,alice,first,
4,2021-03-04T10:15:00Z,carol,,pic.png
5,2021-03-04T10:20:00Z,dave,,
`)

	out := filepath.Join(dir, "out", "consolidated.csv")
	c := New(zerolog.Nop())
	stats, err := c.Run(dir, out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.FilesFound != 2 || stats.FilesProcessed != 2 {
		t.Errorf("Unexpected file stats: %+v", stats)
	}
	// Row 5 has neither content nor attachments
	if stats.KeptRows != 4 || stats.DroppedRows != 1 {
		t.Errorf("Expected 4 kept / 1 dropped, got %d / %d", stats.KeptRows, stats.DroppedRows)
	}
	if stats.UniqueAuthors != 3 {
		t.Errorf("Expected 3 unique authors, got %d", stats.UniqueAuthors)
	}

	rows := readRows(t, out)
	if len(rows) != 5 { // header + 4 messages
		t.Fatalf("Expected 5 rows, got %d", len(rows))
	}

	// Ascending by timestamp across files
	wantIDs := []string{"1", "2", "3", "4"}
	for i, want := range wantIDs {
		if rows[i+1][0] != want {
			t.Errorf("Row %d: expected message %s, got %s", i, want, rows[i+1][0])
		}
	}
	for i := 1; i < len(rows)-1; i++ {
		if rows[i][1] > rows[i+1][1] {
			t.Errorf("Rows %d and %d out of order: %s > %s", i, i+1, rows[i][1], rows[i+1][1])
		}
	}

	// Retention invariant: every kept row has content or attachments
	for _, row := range rows[1:] {
		if row[5] == "" && row[7] != "true" {
			t.Errorf("Retained row %s has neither content nor attachments", row[0])
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"),
		`id,timestamp,author.username,content
1,2021-03-04T10:00:00Z,alice,hello
2,2021-03-04T10:00:00Z,bob,same second
3,2021-03-04T09:00:00+00:00,carol,earlier
`)

	// Output lives outside the scanned tree so reruns see the same inputs
	out := filepath.Join(t.TempDir(), "out.csv")
	c := New(zerolog.Nop())

	if _, err := c.Run(dir, out); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	first, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	if _, err := c.Run(dir, out); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	second, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("Consolidating the same inputs twice produced different output")
	}
}

func TestRunSkipsUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.csv"),
		`text,user,ts
hello,alice,123
`)
	writeFile(t, filepath.Join(dir, "good.csv"),
		`id,timestamp,author.username,content
1,2021-03-04T10:00:00Z,alice,hello
`)

	out := filepath.Join(dir, "out", "consolidated.csv")
	c := New(zerolog.Nop())
	stats, err := c.Run(dir, out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.FilesSkipped != 1 {
		t.Errorf("Expected 1 skipped file, got %d", stats.FilesSkipped)
	}
	if stats.FilesProcessed != 1 {
		t.Errorf("Expected 1 processed file, got %d", stats.FilesProcessed)
	}
	if len(stats.Errors) == 0 {
		t.Error("Expected the skipped file to be recorded as an error")
	}

	rows := readRows(t, out)
	if len(rows) != 2 {
		t.Errorf("Expected header + 1 message, got %d rows", len(rows))
	}
}

func TestRunNoFiles(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.csv")

	c := New(zerolog.Nop())
	if _, err := c.Run(dir, out); err == nil {
		t.Error("Expected error when no CSV files are present")
	}
}
