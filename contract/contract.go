//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"time"

	"github.com/google/uuid"
)

// EventSink is the outbound side of one live session. Consume must be
// non-blocking from the caller's point of view: a sink that cannot
// keep up drops the event and reports the loss itself.
type EventSink interface {
	ID() string
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IVerifier turns a presented credential into a stable identity, or
// nothing. Verification happens once, at handshake time.
type IVerifier interface {
	Verify(credential string) (string, error)
}

// IRegistry tracks live sessions, their owning identities and their
// topic subscriptions. All transition decisions (first session online,
// last session offline) are made atomically inside the registry.
type IRegistry interface {
	Register(sink EventSink)
	// Bind attaches an authenticated identity to a registered session
	// and reports whether the identity just came online.
	Bind(sessionID, userID string) (cameOnline bool)
	// Drop removes a session entirely and reports the owning identity
	// and whether this was its last live session.
	Drop(sessionID string) (userID string, wentOffline bool)
	Subscribe(sessionID string, topic domain.TopicRef)
	Unsubscribe(sessionID string, topic domain.TopicRef)
	IsOnline(userID string) bool
	SessionsFor(userID string) []EventSink
	SinksForTopic(topic domain.TopicRef) []EventSink
	SinksForTopicExcept(topic domain.TopicRef, sessionID string) []EventSink
	// PresentIdentities snapshots the owners of every session currently
	// subscribed to the topic. Unauthenticated sessions do not count.
	PresentIdentities(topic domain.TopicRef) map[string]struct{}
}

// IStore is the persistence collaborator. Counter mutations are atomic
// with respect to concurrent callers; everything else is plain CRUD.
type IStore interface {
	UserByID(ctx context.Context, id string) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, string, error)
	CreateUser(ctx context.Context, user domain.User, passwordHash string) error
	SetOnline(ctx context.Context, id string, online bool, at time.Time) error
	SetStatus(ctx context.Context, id string, status domain.Status, customStatus string) (domain.User, error)

	CreateWorkspace(ctx context.Context, id, name string) error
	AddWorkspaceMember(ctx context.Context, workspaceID, userID string) error
	CreateChannel(ctx context.Context, id, workspaceID, name string) error
	CreateConversation(ctx context.Context, id string, participantIDs []string) error
	WorkspacesFor(ctx context.Context, userID string) ([]string, error)
	IsWorkspaceMember(ctx context.Context, workspaceID, userID string) (bool, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	ChannelWorkspace(ctx context.Context, channelID string) (string, error)
	// MembersOf resolves the identities eligible for a topic: workspace
	// members for channels and workspaces, participants for
	// conversations.
	MembersOf(ctx context.Context, topic domain.TopicRef) ([]domain.User, error)

	CreateMessage(ctx context.Context, msg domain.Message) error
	Message(ctx context.Context, id uuid.UUID) (domain.Message, error)
	UpdateMessage(ctx context.Context, msg domain.Message) error
	Messages(ctx context.Context, topic domain.TopicRef, cursor *string) ([]domain.Message, *string, error)

	IncrementUnread(ctx context.Context, userID string, topic domain.TopicRef) (int, error)
	// ResetUnread zeroes the (identity, topic) counter and returns the
	// previous value.
	ResetUnread(ctx context.Context, userID string, topic domain.TopicRef) (int, error)
	// AddTopicUnread moves the topic aggregate by delta, floored at
	// zero, and returns the new value.
	AddTopicUnread(ctx context.Context, topic domain.TopicRef, delta int) (int, error)
}

// IMessages is the message mutation facade the realtime layer calls.
// Create returns the stored message plus the set of identities
// affected by it (every other member of the topic).
type IMessages interface {
	Create(ctx context.Context, authorID string, topic domain.TopicRef, content string, mentionIDs []string, attachments []domain.Attachment) (domain.Message, []string, error)
	Edit(ctx context.Context, editorID string, id uuid.UUID, content string, mentionIDs []string, attachments []domain.Attachment) (domain.Message, error)
	Delete(ctx context.Context, requesterID string, id uuid.UUID) (domain.Message, error)
	AddReaction(ctx context.Context, userID string, id uuid.UUID, emoji string) (domain.Message, error)
	RemoveReaction(ctx context.Context, userID string, id uuid.UUID, emoji string) (domain.Message, error)
}
