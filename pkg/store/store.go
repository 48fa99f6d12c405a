// Package store holds the consolidated message table in memory for the
// life of the serving process.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/testsabirweb/chat_archive/pkg/models"
)

// ErrNoData indicates the consolidated file has not been produced yet
var ErrNoData = errors.New("consolidated chat file not found; run the consolidate command first")

// Store is a read-only, lazily loaded view over the consolidated CSV file.
// It is safe for concurrent use: the first Load wins and later calls are
// no-ops.
type Store struct {
	path string

	mu       sync.RWMutex
	loaded   bool
	messages []models.Message
}

// New creates a store backed by the consolidated file at path. The file is
// not read until Load is called.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the consolidated file into memory. It returns false when the
// file does not exist. Repeated calls after a successful load are no-ops.
func (s *Store) Load() (bool, error) {
	s.mu.RLock()
	if s.loaded {
		s.mu.RUnlock()
		return true, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return true, nil
	}

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open consolidated file: %w", err)
	}
	defer f.Close()

	messages, err := readConsolidated(f)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	s.messages = messages
	s.loaded = true
	return true, nil
}

// readConsolidated parses the consolidated CSV back into messages
func readConsolidated(r io.Reader) ([]models.Message, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columnMap := make(map[string]int)
	for i, col := range header {
		columnMap[strings.TrimSpace(col)] = i
	}
	for _, col := range models.Header {
		if _, ok := columnMap[col]; !ok {
			return nil, fmt.Errorf("column %s missing from consolidated file", col)
		}
	}

	var messages []models.Message
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", len(messages)+1, err)
		}

		field := func(name string) string {
			return record[columnMap[name]]
		}

		ts, err := parseStoredTimestamp(field("timestamp"))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(messages)+1, err)
		}
		hasAttachments, _ := strconv.ParseBool(field("has_attachments"))

		messages = append(messages, models.Message{
			MessageID:           field("message_id"),
			Timestamp:           ts,
			AuthorUsername:      field("author_username"),
			AuthorDisplayName:   field("author_display_name"),
			AuthorID:            field("author_id"),
			Content:             field("content"),
			ChannelID:           field("channel_id"),
			HasAttachments:      hasAttachments,
			AttachmentURL:       field("attachment_url"),
			AttachmentFilename:  field("attachment_filename"),
			MessageType:         field("message_type"),
			EditedTimestamp:     field("edited_timestamp"),
			ReferencedMessageID: field("referenced_message_id"),
			SourceFile:          field("source_file"),
		})
	}

	return messages, nil
}

func parseStoredTimestamp(ts string) (time.Time, error) {
	if t, err := time.Parse(models.TimestampLayout, ts); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", ts)
}

// Count returns the number of messages in the table
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Slice returns a copy of the rows in [offset, offset+limit), clamped to
// the table bounds. Out-of-range windows yield an empty slice.
func (s *Store) Slice(offset, limit int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(s.messages) {
		return []models.Message{}
	}
	end := offset + limit
	if end > len(s.messages) {
		end = len(s.messages)
	}

	out := make([]models.Message, end-offset)
	copy(out, s.messages[offset:end])
	return out
}

// Page returns the rows for a 1-based page of the given size
func (s *Store) Page(page, size int) []models.Message {
	if page < 1 {
		page = 1
	}
	return s.Slice((page-1)*size, size)
}

// Search returns up to limit rows whose content and author username
// case-insensitively contain the given substrings, in table order. An empty
// substring imposes no constraint on that field. total is the number of
// matches before the limit is applied.
func (s *Store) Search(content, author string, limit int) (results []models.Message, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content = strings.ToLower(content)
	author = strings.ToLower(author)

	results = []models.Message{}
	for _, msg := range s.messages {
		if content != "" && !strings.Contains(strings.ToLower(msg.Content), content) {
			continue
		}
		if author != "" && !strings.Contains(strings.ToLower(msg.AuthorUsername), author) {
			continue
		}
		total++
		if len(results) < limit {
			results = append(results, msg)
		}
	}
	return results, total
}

// AuthorCount is a username with its message frequency
type AuthorCount struct {
	Username string
	Count    int
}

// AuthorCounts returns per-author message counts in first-encountered order
func (s *Store) AuthorCounts() []AuthorCount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := make(map[string]int)
	var counts []AuthorCount
	for _, msg := range s.messages {
		if i, ok := index[msg.AuthorUsername]; ok {
			counts[i].Count++
			continue
		}
		index[msg.AuthorUsername] = len(counts)
		counts = append(counts, AuthorCount{Username: msg.AuthorUsername, Count: 1})
	}
	return counts
}

// TopAuthors returns the n most frequent authors. Ties keep the
// first-encountered order of the underlying counts.
func (s *Store) TopAuthors(n int) []AuthorCount {
	counts := s.AuthorCounts()
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// AttachmentCount returns the number of messages carrying attachments
func (s *Store) AttachmentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, msg := range s.messages {
		if msg.HasAttachments {
			count++
		}
	}
	return count
}

// TimeRange returns the oldest and newest message timestamps. ok is false
// when the table is empty. The table is sorted ascending by timestamp, so
// the bounds are the first and last rows.
func (s *Store) TimeRange() (oldest, newest time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.messages) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.messages[0].Timestamp, s.messages[len(s.messages)-1].Timestamp, true
}
