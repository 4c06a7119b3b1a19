package realtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
)

// Membership authorizes topic subscriptions against the persistence
// collaborator's membership data. A denied join is a session-scoped
// error reported back to the caller; it never terminates the
// connection.
type Membership struct {
	registry contract.IRegistry
	store    contract.IStore
}

func NewMembership(registry contract.IRegistry, store contract.IStore) *Membership {
	return &Membership{registry: registry, store: store}
}

// Join subscribes the session to the topic after an authorization
// check: workspace membership for channel and workspace topics, the
// participant list for conversations.
func (m *Membership) Join(ctx context.Context, sessionID, userID string, topic domain.TopicRef) error {
	if userID == "" {
		return errors.ErrNotAuthenticated
	}

	switch topic.Kind {
	case domain.TopicChannel:
		workspaceID, err := m.store.ChannelWorkspace(ctx, topic.ID)
		if err != nil {
			return fmt.Errorf("%w: %s", errors.ErrTopicNotFound, topic)
		}
		ok, err := m.store.IsWorkspaceMember(ctx, workspaceID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrNotMember
		}
	case domain.TopicConversation:
		ok, err := m.store.IsParticipant(ctx, topic.ID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrNotParticipant
		}
	case domain.TopicWorkspace:
		ok, err := m.store.IsWorkspaceMember(ctx, topic.ID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrNotMember
		}
	default:
		return fmt.Errorf("%w: %s", errors.ErrInvalidTopicRef, topic)
	}

	m.registry.Subscribe(sessionID, topic)
	return nil
}

// Leave always succeeds and is idempotent.
func (m *Membership) Leave(sessionID string, topic domain.TopicRef) {
	m.registry.Unsubscribe(sessionID, topic)
}
