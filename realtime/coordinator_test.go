package realtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type coordinatorFixture struct {
	coordinator *Coordinator
	registry    *Registry
	store       *mocks.MockIStore
	messages    *mocks.MockIMessages
}

func newCoordinatorFixture(ctrl *gomock.Controller) coordinatorFixture {
	store := mocks.NewMockIStore(ctrl)
	messages := mocks.NewMockIMessages(ctrl)
	registry := NewRegistry()
	return coordinatorFixture{
		coordinator: NewCoordinator(slog.Default(), store, messages, registry),
		registry:    registry,
		store:       store,
		messages:    messages,
	}
}

// recordingSink captures delivered events in order.
func recordingSink(ctrl *gomock.Controller, id string, got *[]event.DomainEvent) *mocks.MockEventSink {
	sink := newSink(ctrl, id)
	sink.EXPECT().
		Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
			*got = append(*got, e)
			return nil
		}).
		AnyTimes()
	return sink
}

func TestCoordinator_JoinConversationRequiresParticipation(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	f := newCoordinatorFixture(ctrl)
	f.registry.Register(newSink(ctrl, "s1"))
	f.registry.Bind("s1", "u3")

	topic := domain.ConversationTopic("42")
	f.store.EXPECT().IsParticipant(gomock.Any(), "42", "u3").Return(false, nil)

	// When an outsider tries to join a private conversation
	err := f.coordinator.JoinTopic(ctx, "s1", "u3", topic)

	// Then the join is refused and no subscription exists
	req.ErrorIs(err, apperrors.ErrNotParticipant)
	req.Empty(f.registry.SinksForTopic(topic))
}

func TestCoordinator_JoinRequiresAuthentication(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	f := newCoordinatorFixture(ctrl)
	f.registry.Register(newSink(ctrl, "s1"))

	err := f.coordinator.JoinTopic(context.Background(), "s1", "", domain.ChannelTopic("general"))
	req.ErrorIs(err, apperrors.ErrNotAuthenticated)
}

func TestCoordinator_SendMessageBroadcastsBeforeUnread(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	f := newCoordinatorFixture(ctrl)
	topic := domain.ChannelTopic("general")

	// Given u1 sending and u2 subscribed but counted as affected
	var got []event.DomainEvent
	f.registry.Register(recordingSink(ctrl, "s2", &got))
	f.registry.Bind("s2", "u2")
	f.registry.Subscribe("s2", topic)

	var dropped []event.DomainEvent
	f.registry.Register(recordingSink(ctrl, "s3", &dropped))
	f.registry.Bind("s3", "u3")

	msg := domain.Message{Topic: topic, Content: "hello", Author: domain.User{ID: "u1"}}
	f.messages.EXPECT().
		Create(gomock.Any(), "u1", topic, "hello", nil, nil).
		Return(msg, []string{"u2", "u3"}, nil)
	// u2 is present, only u3 gets an unread increment
	f.store.EXPECT().IncrementUnread(gomock.Any(), "u3", topic).Return(1, nil)
	f.store.EXPECT().AddTopicUnread(gomock.Any(), topic, 1).Return(1, nil)

	req.NoError(f.coordinator.SendMessage(ctx, "u1", topic, "hello", nil, nil))

	// Then the present session sees the message before the counter
	req.Len(got, 2)
	req.Equal("messageCreated", got[0].EventName())
	req.Equal(event.UnreadChanged{Topic: topic, Count: 1}, got[1])

	// And the absent identity only sees its own increment
	req.Len(dropped, 1)
	req.Equal(event.UnreadIncrement{Topic: topic}, dropped[0])
}

func TestCoordinator_SendMessageRequiresAuthentication(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	f := newCoordinatorFixture(ctrl)

	err := f.coordinator.SendMessage(context.Background(), "", domain.ChannelTopic("general"), "hi", nil, nil)
	req.ErrorIs(err, apperrors.ErrNotAuthenticated)
}

func TestCoordinator_TypingExcludesSender(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	f := newCoordinatorFixture(ctrl)
	topic := domain.ChannelTopic("general")

	var senderSaw, otherSaw []event.DomainEvent
	f.registry.Register(recordingSink(ctrl, "s1", &senderSaw))
	f.registry.Register(recordingSink(ctrl, "s2", &otherSaw))
	f.registry.Bind("s1", "u1")
	f.registry.Bind("s2", "u2")
	f.registry.Subscribe("s1", topic)
	f.registry.Subscribe("s2", topic)

	f.coordinator.SetTyping(ctx, "s1", domain.User{ID: "u1", Name: "alice"}, topic, true)

	req.Empty(senderSaw)
	req.Len(otherSaw, 1)
	req.Equal("typing", otherSaw[0].EventName())
}

func TestCoordinator_TypingFromAnonymousIsIgnored(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	f := newCoordinatorFixture(ctrl)
	topic := domain.ChannelTopic("general")

	var got []event.DomainEvent
	f.registry.Register(recordingSink(ctrl, "s2", &got))
	f.registry.Subscribe("s2", topic)

	f.coordinator.SetTyping(context.Background(), "s1", domain.User{}, topic, true)

	req.Empty(got)
}

func TestCoordinator_LastDisconnectBroadcastsOffline(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	f := newCoordinatorFixture(ctrl)

	// Given u1 on two devices, both auto-joined to workspace w1
	var got []event.DomainEvent
	watcher := recordingSink(ctrl, "s9", &got)
	f.registry.Register(watcher)
	f.registry.Subscribe("s9", domain.WorkspaceTopic("w1"))

	f.registry.Register(newSink(ctrl, "s1"))
	f.registry.Register(newSink(ctrl, "s2"))

	f.store.EXPECT().SetOnline(gomock.Any(), "u1", true, gomock.Any()).Return(nil)
	f.store.EXPECT().WorkspacesFor(gomock.Any(), "u1").Return([]string{"w1"}, nil).Times(2)
	_, err := f.coordinator.Authenticate(ctx, "s1", "u1")
	req.NoError(err)
	_, err = f.coordinator.Authenticate(ctx, "s2", "u1")
	req.NoError(err)

	// When the first device disconnects nothing is broadcast
	f.coordinator.Disconnect(ctx, "s1")
	req.Empty(got)

	// Then the last disconnect fires exactly one offline transition
	f.store.EXPECT().SetOnline(gomock.Any(), "u1", false, gomock.Any()).Return(nil)
	f.store.EXPECT().WorkspacesFor(gomock.Any(), "u1").Return([]string{"w1"}, nil)
	f.coordinator.Disconnect(ctx, "s2")

	req.Len(got, 1)
	req.Equal(event.PresenceChanged{UserID: "u1", IsOnline: false}, got[0])
}

func TestCoordinator_SetStatusReachesWorkspaces(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	f := newCoordinatorFixture(ctrl)

	var got []event.DomainEvent
	f.registry.Register(recordingSink(ctrl, "s2", &got))
	f.registry.Subscribe("s2", domain.WorkspaceTopic("w1"))

	f.store.EXPECT().
		SetStatus(gomock.Any(), "u1", domain.StatusAway, "lunch").
		Return(domain.User{ID: "u1", Status: domain.StatusAway, CustomStatus: "lunch"}, nil)
	f.store.EXPECT().WorkspacesFor(gomock.Any(), "u1").Return([]string{"w1"}, nil)

	req.NoError(f.coordinator.SetStatus(ctx, "u1", domain.StatusAway, "lunch"))

	req.Len(got, 1)
	req.Equal(event.StatusChanged{UserID: "u1", Status: domain.StatusAway, CustomStatus: "lunch"}, got[0])
}
