// Package domain contains core concepts of the chat system.
// This file defines Topic references used to scope group delivery.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"strings"
)

type TopicKind string

const (
	TopicChannel      TopicKind = "channel"
	TopicConversation TopicKind = "dm"
	TopicWorkspace    TopicKind = "workspace"
)

// TopicRef is a named delivery scope over an existing channel,
// direct conversation or workspace id. It is not a stored entity.
type TopicRef struct {
	Kind TopicKind
	ID   string
}

func ChannelTopic(id string) TopicRef      { return TopicRef{Kind: TopicChannel, ID: id} }
func ConversationTopic(id string) TopicRef { return TopicRef{Kind: TopicConversation, ID: id} }
func WorkspaceTopic(id string) TopicRef    { return TopicRef{Kind: TopicWorkspace, ID: id} }

func (t TopicRef) String() string {
	return fmt.Sprintf("%s:%s", t.Kind, t.ID)
}

func (t TopicRef) IsZero() bool {
	return t.Kind == "" && t.ID == ""
}

// MarshalJSON renders the "kind:id" wire form.
func (t TopicRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TopicRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ref, err := ParseTopicRef(s)
	if err != nil {
		return err
	}
	*t = ref
	return nil
}

// ParseTopicRef parses the "kind:id" wire form. Only the three known
// kinds are accepted, and the id part must be non-empty.
func ParseTopicRef(s string) (TopicRef, error) {
	kind, id, found := strings.Cut(s, ":")
	if !found || id == "" {
		return TopicRef{}, fmt.Errorf("%w: %q", errors.ErrInvalidTopicRef, s)
	}
	switch TopicKind(kind) {
	case TopicChannel, TopicConversation, TopicWorkspace:
		return TopicRef{Kind: TopicKind(kind), ID: id}, nil
	default:
		return TopicRef{}, fmt.Errorf("%w: %q", errors.ErrInvalidTopicRef, s)
	}
}
