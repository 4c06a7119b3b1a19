// Package realtime is the coordination core of the chat system: it
// tracks live sessions and their topic subscriptions, fans domain
// events out to the right sessions, keeps unread counters, throttles
// abusive connections and drives presence transitions. Everything
// else in the repository is a collaborator it talks to through the
// contract package.
package realtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Coordinator handles one inbound realtime operation at a time per
// session and owns the ordering rule: within one triggering action the
// message broadcast is issued before any unread delta, so a present
// client always sees the message first. Nothing is guaranteed across
// independent actions beyond per-connection transport ordering.
type Coordinator struct {
	log        *slog.Logger
	store      contract.IStore
	messages   contract.IMessages
	registry   contract.IRegistry
	dispatcher *Dispatcher
	presence   *Presence
	membership *Membership
	unread     *UnreadAggregator
}

func NewCoordinator(log *slog.Logger, store contract.IStore, messages contract.IMessages, registry contract.IRegistry) *Coordinator {
	dispatcher := NewDispatcher(log, registry)
	return &Coordinator{
		log:        log,
		store:      store,
		messages:   messages,
		registry:   registry,
		dispatcher: dispatcher,
		presence:   NewPresence(log, registry, store, dispatcher),
		membership: NewMembership(registry, store),
		unread:     NewUnreadAggregator(log, store, registry, dispatcher),
	}
}

func (c *Coordinator) Register(sink contract.EventSink) {
	c.registry.Register(sink)
}

// Authenticate binds a verified identity to a session and returns the
// workspace ids whose topics the session was auto-joined to.
func (c *Coordinator) Authenticate(ctx context.Context, sessionID, userID string) ([]string, error) {
	return c.presence.SessionAuthenticated(ctx, sessionID, userID)
}

// Disconnect is the only cancellation signal a session has. It always
// runs the cleanup path, regardless of any in-flight operation.
func (c *Coordinator) Disconnect(ctx context.Context, sessionID string) {
	c.presence.SessionClosed(ctx, sessionID)
}

func (c *Coordinator) JoinTopic(ctx context.Context, sessionID, userID string, topic domain.TopicRef) error {
	return c.membership.Join(ctx, sessionID, userID, topic)
}

func (c *Coordinator) LeaveTopic(sessionID string, topic domain.TopicRef) {
	c.membership.Leave(sessionID, topic)
}

// SendMessage persists the message, broadcasts it to the topic,
// notifies mentioned identities on all their devices, and only then
// lets the unread aggregator work through the affected identities.
func (c *Coordinator) SendMessage(ctx context.Context, userID string, topic domain.TopicRef, content string, mentionIDs []string, attachments []domain.Attachment) error {
	if userID == "" {
		return errors.ErrNotAuthenticated
	}

	msg, affectedIDs, err := c.messages.Create(ctx, userID, topic, content, mentionIDs, attachments)
	if err != nil {
		return err
	}

	c.dispatcher.ToTopic(ctx, topic, event.MessageCreated{Message: msg})
	c.dispatcher.NotifyMentions(ctx, msg)
	c.unread.NoteMessage(ctx, topic, affectedIDs)
	return nil
}

func (c *Coordinator) EditMessage(ctx context.Context, userID string, messageID uuid.UUID, content string, mentionIDs []string, attachments []domain.Attachment) error {
	if userID == "" {
		return errors.ErrNotAuthenticated
	}
	msg, err := c.messages.Edit(ctx, userID, messageID, content, mentionIDs, attachments)
	if err != nil {
		return err
	}
	c.dispatcher.ToTopic(ctx, msg.Topic, event.MessageUpdated{Message: msg})
	return nil
}

func (c *Coordinator) DeleteMessage(ctx context.Context, userID string, messageID uuid.UUID) error {
	if userID == "" {
		return errors.ErrNotAuthenticated
	}
	msg, err := c.messages.Delete(ctx, userID, messageID)
	if err != nil {
		return err
	}
	c.dispatcher.ToTopic(ctx, msg.Topic, event.MessageDeleted{ID: msg.ID, Topic: msg.Topic})
	return nil
}

func (c *Coordinator) AddReaction(ctx context.Context, userID string, messageID uuid.UUID, emoji string) error {
	if userID == "" {
		return errors.ErrNotAuthenticated
	}
	msg, err := c.messages.AddReaction(ctx, userID, messageID, emoji)
	if err != nil {
		return err
	}
	c.dispatcher.ToTopic(ctx, msg.Topic, event.ReactionChanged{Message: msg})
	return nil
}

func (c *Coordinator) RemoveReaction(ctx context.Context, userID string, messageID uuid.UUID, emoji string) error {
	if userID == "" {
		return errors.ErrNotAuthenticated
	}
	msg, err := c.messages.RemoveReaction(ctx, userID, messageID, emoji)
	if err != nil {
		return err
	}
	c.dispatcher.ToTopic(ctx, msg.Topic, event.ReactionChanged{Message: msg})
	return nil
}

// SetTyping relays a typing indicator to the topic, excluding the
// sender's own session. Invalid or unauthenticated typing events are
// silently ignored; they are too frequent to be worth an error reply.
func (c *Coordinator) SetTyping(ctx context.Context, sessionID string, user domain.User, topic domain.TopicRef, isTyping bool) {
	if user.ID == "" {
		return
	}
	c.dispatcher.ToTopicExcept(ctx, topic, sessionID, event.Typing{User: user, Topic: topic, IsTyping: isTyping})
}

func (c *Coordinator) MarkRead(ctx context.Context, userID string, topic domain.TopicRef) error {
	if userID == "" {
		return errors.ErrNotAuthenticated
	}
	return c.unread.MarkRead(ctx, userID, topic)
}

// SetStatus persists the new status and fans the change out to every
// workspace the identity belongs to.
func (c *Coordinator) SetStatus(ctx context.Context, userID string, status domain.Status, customStatus string) error {
	if userID == "" {
		return errors.ErrNotAuthenticated
	}

	user, err := c.store.SetStatus(ctx, userID, status, customStatus)
	if err != nil {
		return err
	}

	workspaceIDs, err := c.store.WorkspacesFor(ctx, userID)
	if err != nil {
		c.log.Error("loading workspaces for status broadcast failed", "user_id", userID, "error", err)
		return nil
	}
	c.dispatcher.ToWorkspaces(ctx, workspaceIDs, event.StatusChanged{
		UserID:       user.ID,
		Status:       user.Status,
		CustomStatus: user.CustomStatus,
	})
	return nil
}
