package realtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
)

// UnreadAggregator decides which affected identities missed a message
// because no live session of theirs was subscribed to its topic, and
// keeps the per-(identity, topic) counters and the topic aggregate in
// step.
type UnreadAggregator struct {
	log        *slog.Logger
	store      contract.IStore
	registry   contract.IRegistry
	dispatcher *Dispatcher
}

func NewUnreadAggregator(log *slog.Logger, store contract.IStore, registry contract.IRegistry, dispatcher *Dispatcher) *UnreadAggregator {
	return &UnreadAggregator{log: log, store: store, registry: registry, dispatcher: dispatcher}
}

// NoteMessage increments the counter of every affected identity not
// present in the topic, then moves the topic aggregate by the number
// of identities incremented (not by message count) and broadcasts the
// new aggregate.
//
// The presence snapshot is taken synchronously from registry state; a
// session joining right after the snapshot simply relies on its
// initial unread fetch. That gap is accepted, not masked.
func (a *UnreadAggregator) NoteMessage(ctx context.Context, topic domain.TopicRef, affectedIDs []string) {
	present := a.registry.PresentIdentities(topic)

	missing := 0
	for _, userID := range affectedIDs {
		if _, ok := present[userID]; ok {
			continue
		}
		if _, err := a.store.IncrementUnread(ctx, userID, topic); err != nil {
			a.log.Error("unread increment failed", "user_id", userID, "topic", topic.String(), "error", err)
			continue
		}
		missing++
		a.dispatcher.ToIdentity(ctx, userID, event.UnreadIncrement{Topic: topic})
	}

	if missing == 0 {
		return
	}
	aggregate, err := a.store.AddTopicUnread(ctx, topic, missing)
	if err != nil {
		a.log.Error("aggregate unread update failed", "topic", topic.String(), "error", err)
		return
	}
	a.dispatcher.ToTopic(ctx, topic, event.UnreadChanged{Topic: topic, Count: aggregate})
}

// MarkRead zeroes the identity's counter for the topic, subtracts that
// same amount from the aggregate (floored at zero to tolerate
// concurrent resets) and broadcasts the new aggregate. Marking an
// already-zero counter is a no-op that still succeeds.
func (a *UnreadAggregator) MarkRead(ctx context.Context, userID string, topic domain.TopicRef) error {
	previous, err := a.store.ResetUnread(ctx, userID, topic)
	if err != nil {
		return err
	}
	if previous <= 0 {
		return nil
	}

	aggregate, err := a.store.AddTopicUnread(ctx, topic, -previous)
	if err != nil {
		return err
	}
	a.dispatcher.ToTopic(ctx, topic, event.UnreadChanged{Topic: topic, Count: aggregate})
	return nil
}
