// Package domain contains core concepts of the chat system.
// This file defines Message entities and related rules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Attachment describes a file already uploaded through the object
// storage collaborator and referenced by URL from a message.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Message is a chat event inside one topic. Reactions map an emoji to
// the set of user ids that added it. Deleted messages are tombstones,
// never removed from storage.
type Message struct {
	ID          uuid.UUID           `json:"id"`
	Topic       TopicRef            `json:"topic"`
	Author      User                `json:"author"`
	Content     string              `json:"content"`
	Mentions    []User              `json:"mentions,omitempty"`
	Attachments []Attachment        `json:"attachments,omitempty"`
	Reactions   map[string][]string `json:"reactions,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	EditedAt    *time.Time          `json:"editedAt,omitempty"`
	Deleted     bool                `json:"deleted,omitempty"`
}

// AddReaction records a reaction, idempotent per (emoji, user).
func (m *Message) AddReaction(emoji, userID string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	for _, id := range m.Reactions[emoji] {
		if id == userID {
			return
		}
	}
	m.Reactions[emoji] = append(m.Reactions[emoji], userID)
}

// RemoveReaction drops a reaction and removes the emoji entry when the
// last user leaves it. Removing an absent reaction is a no-op.
func (m *Message) RemoveReaction(emoji, userID string) {
	users := m.Reactions[emoji]
	for i, id := range users {
		if id == userID {
			users = append(users[:i], users[i+1:]...)
			break
		}
	}
	if len(users) == 0 {
		delete(m.Reactions, emoji)
		return
	}
	m.Reactions[emoji] = users
}
