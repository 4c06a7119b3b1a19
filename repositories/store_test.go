package repositories

import (
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, slog.Default())
}

func TestStore_UserRoundTrip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	user := domain.User{ID: "u1", Email: "alice@example.com", Name: "alice", Status: domain.StatusOffline}
	req.NoError(store.CreateUser(ctx, user, "hash"))

	got, err := store.UserByID(ctx, "u1")
	req.NoError(err)
	req.Equal(user, got)

	byEmail, hash, err := store.UserByEmail(ctx, "alice@example.com")
	req.NoError(err)
	req.Equal(user, byEmail)
	req.Equal("hash", hash)

	_, err = store.UserByID(ctx, "ghost")
	req.ErrorIs(err, apperrors.ErrUserNotFound)
}

func TestStore_SetOnlineStampsLastSeen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	req.NoError(store.CreateUser(ctx, domain.User{ID: "u1", Email: "a@b.c"}, ""))

	req.NoError(store.SetOnline(ctx, "u1", true, time.Now().UTC()))
	got, err := store.UserByID(ctx, "u1")
	req.NoError(err)
	req.True(got.IsOnline)
	req.Nil(got.LastSeen)

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	req.NoError(store.SetOnline(ctx, "u1", false, at))
	got, err = store.UserByID(ctx, "u1")
	req.NoError(err)
	req.False(got.IsOnline)
	req.NotNil(got.LastSeen)
	req.Equal(at, got.LastSeen.UTC())
}

func TestStore_MembershipResolution(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	for _, id := range []string{"u1", "u2"} {
		req.NoError(store.CreateUser(ctx, domain.User{ID: id, Email: id + "@x", Name: id}, ""))
	}
	req.NoError(store.CreateWorkspace(ctx, "w1", "Main"))
	req.NoError(store.AddWorkspaceMember(ctx, "w1", "u1"))
	req.NoError(store.AddWorkspaceMember(ctx, "w1", "u2"))
	req.NoError(store.CreateChannel(ctx, "c1", "w1", "general"))
	req.NoError(store.CreateConversation(ctx, "d1", []string{"u1", "u2"}))

	// Channel members come from the owning workspace
	users, err := store.MembersOf(ctx, domain.ChannelTopic("c1"))
	req.NoError(err)
	req.Len(users, 2)

	// Conversation members are the participants
	users, err = store.MembersOf(ctx, domain.ConversationTopic("d1"))
	req.NoError(err)
	req.Len(users, 2)

	ok, err := store.IsWorkspaceMember(ctx, "w1", "u1")
	req.NoError(err)
	req.True(ok)
	ok, err = store.IsParticipant(ctx, "d1", "u3")
	req.NoError(err)
	req.False(ok)

	workspaceID, err := store.ChannelWorkspace(ctx, "c1")
	req.NoError(err)
	req.Equal("w1", workspaceID)

	_, err = store.ChannelWorkspace(ctx, "ghost")
	req.ErrorIs(err, apperrors.ErrTopicNotFound)

	_, err = store.MembersOf(ctx, domain.ConversationTopic("ghost"))
	req.ErrorIs(err, apperrors.ErrTopicNotFound)

	workspaces, err := store.WorkspacesFor(ctx, "u1")
	req.NoError(err)
	req.Equal([]string{"w1"}, workspaces)
}

func TestStore_MessageRoundTrip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	topic := domain.ChannelTopic("c1")
	msg := domain.Message{
		ID:        uuid.New(),
		Topic:     topic,
		Author:    domain.User{ID: "u1", Name: "alice"},
		Content:   "hello",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	req.NoError(store.CreateMessage(ctx, msg))

	got, err := store.Message(ctx, msg.ID)
	req.NoError(err)
	req.Equal(msg.Content, got.Content)
	req.Equal(msg.ID, got.ID)

	got.Content = "edited"
	req.NoError(store.UpdateMessage(ctx, got))
	again, err := store.Message(ctx, msg.ID)
	req.NoError(err)
	req.Equal("edited", again.Content)

	_, err = store.Message(ctx, uuid.New())
	req.ErrorIs(err, apperrors.ErrMessageNotFound)
}

func TestStore_MessagesPaginateNewestFirst(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)
	store.pageSize = 3

	topic := domain.ChannelTopic("c1")
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		req.NoError(store.CreateMessage(ctx, domain.Message{
			ID:        uuid.New(),
			Topic:     topic,
			Content:   fmt.Sprintf("m%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	// First page: the three newest, newest first
	page, cursor, err := store.Messages(ctx, topic, nil)
	req.NoError(err)
	req.NotNil(cursor)
	req.Equal([]string{"m4", "m3", "m2"}, contents(page))

	// Second page continues past the cursor and exhausts the topic
	page, cursor, err = store.Messages(ctx, topic, cursor)
	req.NoError(err)
	req.Nil(cursor)
	req.Equal([]string{"m1", "m0"}, contents(page))
}

func TestStore_MessagesStayWithinTopic(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	at := time.Now().UTC()
	req.NoError(store.CreateMessage(ctx, domain.Message{ID: uuid.New(), Topic: domain.ChannelTopic("c1"), Content: "in c1", CreatedAt: at}))
	req.NoError(store.CreateMessage(ctx, domain.Message{ID: uuid.New(), Topic: domain.ChannelTopic("c2"), Content: "in c2", CreatedAt: at}))

	page, _, err := store.Messages(ctx, domain.ChannelTopic("c1"), nil)
	req.NoError(err)
	req.Equal([]string{"in c1"}, contents(page))
}

func TestStore_UnreadCounters(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	topic := domain.ChannelTopic("c1")

	count, err := store.IncrementUnread(ctx, "u1", topic)
	req.NoError(err)
	req.Equal(1, count)
	count, err = store.IncrementUnread(ctx, "u1", topic)
	req.NoError(err)
	req.Equal(2, count)

	// Reset returns what was there and zeroes the counter
	previous, err := store.ResetUnread(ctx, "u1", topic)
	req.NoError(err)
	req.Equal(2, previous)
	previous, err = store.ResetUnread(ctx, "u1", topic)
	req.NoError(err)
	req.Equal(0, previous)

	// The aggregate is floored at zero
	total, err := store.AddTopicUnread(ctx, topic, 2)
	req.NoError(err)
	req.Equal(2, total)
	total, err = store.AddTopicUnread(ctx, topic, -5)
	req.NoError(err)
	req.Equal(0, total)
}

func TestStore_SetStatusReturnsUpdatedUser(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	req.NoError(store.CreateUser(ctx, domain.User{ID: "u1", Email: "a@b.c"}, ""))

	user, err := store.SetStatus(ctx, "u1", domain.StatusAway, "lunch")
	req.NoError(err)
	req.Equal(domain.StatusAway, user.Status)
	req.Equal("lunch", user.CustomStatus)

	_, err = store.SetStatus(ctx, "ghost", domain.StatusAway, "")
	req.ErrorIs(err, apperrors.ErrUserNotFound)
}

func contents(messages []domain.Message) []string {
	out := make([]string, 0, len(messages))
	for _, msg := range messages {
		out = append(out, msg.Content)
	}
	return out
}
