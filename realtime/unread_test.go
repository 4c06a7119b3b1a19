package realtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestUnreadAggregator_CountsOnlyAbsentIdentities(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	log := slog.Default()

	store := mocks.NewMockIStore(ctrl)
	registry := NewRegistry()
	dispatcher := NewDispatcher(log, registry)
	aggregator := NewUnreadAggregator(log, store, registry, dispatcher)

	topic := domain.ChannelTopic("general")

	// Given u2 present in the topic and u3, u4 absent
	presentSink := newSink(ctrl, "s2")
	registry.Register(presentSink)
	registry.Bind("s2", "u2")
	registry.Subscribe("s2", topic)

	store.EXPECT().IncrementUnread(gomock.Any(), "u3", topic).Return(1, nil)
	store.EXPECT().IncrementUnread(gomock.Any(), "u4", topic).Return(2, nil)
	// Aggregate moves by the number of absent identities, not messages
	store.EXPECT().AddTopicUnread(gomock.Any(), topic, 2).Return(2, nil)

	var got []event.DomainEvent
	presentSink.EXPECT().
		Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
			got = append(got, e)
			return nil
		}).
		AnyTimes()

	// When a message lands for u2, u3 and u4
	aggregator.NoteMessage(ctx, topic, []string{"u2", "u3", "u4"})

	// Then the present session only sees the aggregate change
	req.Len(got, 1)
	req.Equal(event.UnreadChanged{Topic: topic, Count: 2}, got[0])
}

func TestUnreadAggregator_AllPresentMeansNoWork(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	log := slog.Default()

	store := mocks.NewMockIStore(ctrl)
	registry := NewRegistry()
	dispatcher := NewDispatcher(log, registry)
	aggregator := NewUnreadAggregator(log, store, registry, dispatcher)

	topic := domain.ChannelTopic("general")
	sink := newSink(ctrl, "s1")
	registry.Register(sink)
	registry.Bind("s1", "u1")
	registry.Subscribe("s1", topic)

	// No store calls expected at all
	aggregator.NoteMessage(ctx, topic, []string{"u1"})
}

func TestUnreadAggregator_MarkReadSubtractsPrevious(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	log := slog.Default()

	store := mocks.NewMockIStore(ctrl)
	registry := NewRegistry()
	dispatcher := NewDispatcher(log, registry)
	aggregator := NewUnreadAggregator(log, store, registry, dispatcher)

	topic := domain.ChannelTopic("general")

	// Given u1 had 3 unread and the aggregate drops to 5
	store.EXPECT().ResetUnread(gomock.Any(), "u1", topic).Return(3, nil)
	store.EXPECT().AddTopicUnread(gomock.Any(), topic, -3).Return(5, nil)

	req.NoError(aggregator.MarkRead(ctx, "u1", topic))
}

func TestUnreadAggregator_MarkReadOnZeroIsANoOp(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	log := slog.Default()

	store := mocks.NewMockIStore(ctrl)
	registry := NewRegistry()
	dispatcher := NewDispatcher(log, registry)
	aggregator := NewUnreadAggregator(log, store, registry, dispatcher)

	topic := domain.ChannelTopic("general")

	// Given nothing unread; the aggregate must not be touched
	store.EXPECT().ResetUnread(gomock.Any(), "u1", topic).Return(0, nil)

	req.NoError(aggregator.MarkRead(ctx, "u1", topic))
}
