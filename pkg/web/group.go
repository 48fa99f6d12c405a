package web

import (
	"net/url"
	"time"

	"github.com/testsabirweb/chat_archive/pkg/models"
)

// groupGap is the maximum silence between two messages that still belong
// to the same display group
const groupGap = 5 * time.Minute

// GroupedMessage is a single message as rendered inside a display group
type GroupedMessage struct {
	Content            string
	Timestamp          time.Time
	HasAttachment      bool
	AttachmentFilename string
	AttachmentURL      string // empty unless a valid link target
}

// MessageGroup is an ordered run of messages from one author where each
// consecutive pair is at most groupGap apart. Groups are rebuilt per page
// window and never persisted.
type MessageGroup struct {
	Author         string
	AuthorDisplay  string
	FirstTimestamp time.Time
	LastTimestamp  time.Time
	Messages       []GroupedMessage
}

// BuildGroups clusters a window of messages into display groups, in row
// order. Rows without an author, or with neither content nor a usable
// attachment, are skipped. A new group starts when the author changes or
// the gap since the group's last message exceeds groupGap.
func BuildGroups(messages []models.Message) []*MessageGroup {
	groups := []*MessageGroup{}
	var current *MessageGroup

	for _, msg := range messages {
		if msg.AuthorUsername == "" {
			continue
		}
		usableAttachment := msg.UsableAttachment()
		if msg.Content == "" && !usableAttachment {
			continue
		}

		if current == nil ||
			current.Author != msg.AuthorUsername ||
			msg.Timestamp.Sub(current.LastTimestamp) > groupGap {
			current = &MessageGroup{
				Author:         msg.AuthorUsername,
				AuthorDisplay:  msg.DisplayName(),
				FirstTimestamp: msg.Timestamp,
				LastTimestamp:  msg.Timestamp,
			}
			groups = append(groups, current)
		} else {
			current.LastTimestamp = msg.Timestamp
		}

		gm := GroupedMessage{
			Content:       msg.Content,
			Timestamp:     msg.Timestamp,
			HasAttachment: usableAttachment,
		}
		if usableAttachment {
			gm.AttachmentFilename = msg.AttachmentFilename
			if isLinkable(msg.AttachmentURL) {
				gm.AttachmentURL = msg.AttachmentURL
			}
		}
		current.Messages = append(current.Messages, gm)
	}

	return groups
}

// isLinkable reports whether s is an absolute URL worth hyperlinking
func isLinkable(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
