// Package event defines the closed set of domain events the realtime
// layer fans out. Each variant carries enough data to route and render
// without further lookups; the transport serializes them under the
// wire name returned by EventName.
package event

import (
	"chat-relay/domain"

	"github.com/google/uuid"
)

type DomainEvent interface {
	EventName() string
}

type MessageCreated struct {
	Message domain.Message `json:"message"`
}

func (MessageCreated) EventName() string { return "messageCreated" }

type MessageUpdated struct {
	Message domain.Message `json:"message"`
}

func (MessageUpdated) EventName() string { return "messageUpdated" }

type MessageDeleted struct {
	ID    uuid.UUID       `json:"id"`
	Topic domain.TopicRef `json:"topicRef"`
}

func (MessageDeleted) EventName() string { return "messageDeleted" }

type ReactionChanged struct {
	Message domain.Message `json:"message"`
}

func (ReactionChanged) EventName() string { return "reactionChanged" }

type Typing struct {
	User     domain.User     `json:"user"`
	Topic    domain.TopicRef `json:"topicRef"`
	IsTyping bool            `json:"isTyping"`
}

func (Typing) EventName() string { return "typing" }

// UnreadChanged carries the new aggregate unread count of one topic.
type UnreadChanged struct {
	Topic domain.TopicRef `json:"topicRef"`
	Count int             `json:"count"`
}

func (UnreadChanged) EventName() string { return "unreadCountsChanged" }

// UnreadIncrement tells one absent identity that its personal counter
// for the topic grew. The client fetches exact counts on demand.
type UnreadIncrement struct {
	Topic domain.TopicRef `json:"topicRef"`
}

func (UnreadIncrement) EventName() string { return "unreadIncrement" }

type PresenceChanged struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

func (PresenceChanged) EventName() string { return "presenceChanged" }

type StatusChanged struct {
	UserID       string        `json:"userId"`
	Status       domain.Status `json:"status"`
	CustomStatus string        `json:"customStatus,omitempty"`
}

func (StatusChanged) EventName() string { return "statusChanged" }

// MentionNotification targets every live session of one mentioned
// identity, independent of topic subscription.
type MentionNotification struct {
	Kind    string         `json:"kind"`
	Message domain.Message `json:"message"`
}

func NewMentionNotification(msg domain.Message) MentionNotification {
	return MentionNotification{Kind: "mention", Message: msg}
}

func (MentionNotification) EventName() string { return "notification" }
