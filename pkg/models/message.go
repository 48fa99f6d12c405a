package models

import (
	"strconv"
	"time"
)

// TimestampLayout is the fixed layout used for timestamps in the
// consolidated CSV file. Always UTC so reruns produce identical bytes.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Message represents one consolidated chat message
type Message struct {
	MessageID           string    `json:"message_id"`
	Timestamp           time.Time `json:"timestamp"`
	AuthorUsername      string    `json:"author_username"`
	AuthorDisplayName   string    `json:"author_display_name"`
	AuthorID            string    `json:"author_id"`
	Content             string    `json:"content"`
	ChannelID           string    `json:"channel_id"`
	HasAttachments      bool      `json:"has_attachments"`
	AttachmentURL       string    `json:"attachment_url"`
	AttachmentFilename  string    `json:"attachment_filename"`
	MessageType         string    `json:"message_type"`
	EditedTimestamp     string    `json:"edited_timestamp"`
	ReferencedMessageID string    `json:"referenced_message_id"`
	SourceFile          string    `json:"source_file"`
}

// Header is the column order of the consolidated CSV file.
var Header = []string{
	"message_id",
	"timestamp",
	"author_username",
	"author_display_name",
	"author_id",
	"content",
	"channel_id",
	"has_attachments",
	"attachment_url",
	"attachment_filename",
	"message_type",
	"edited_timestamp",
	"referenced_message_id",
	"source_file",
}

// Record returns the message as a CSV record in Header order.
func (m Message) Record() []string {
	return []string{
		m.MessageID,
		m.Timestamp.UTC().Format(TimestampLayout),
		m.AuthorUsername,
		m.AuthorDisplayName,
		m.AuthorID,
		m.Content,
		m.ChannelID,
		strconv.FormatBool(m.HasAttachments),
		m.AttachmentURL,
		m.AttachmentFilename,
		m.MessageType,
		m.EditedTimestamp,
		m.ReferencedMessageID,
		m.SourceFile,
	}
}

// Retained reports whether the message survives consolidation: it must
// carry content or at least one attachment.
func (m Message) Retained() bool {
	return m.Content != "" || m.HasAttachments
}

// UsableAttachment reports whether the message has an attachment worth
// rendering, which requires a filename.
func (m Message) UsableAttachment() bool {
	return m.HasAttachments && m.AttachmentFilename != ""
}

// DisplayName returns the author's display name, falling back to the
// username when no display name was exported.
func (m Message) DisplayName() string {
	if m.AuthorDisplayName != "" {
		return m.AuthorDisplayName
	}
	return m.AuthorUsername
}
