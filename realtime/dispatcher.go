package realtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
)

// Dispatcher turns a domain event into transport deliveries. Fan-out
// is best-effort: a sink that fails to take the event is logged and
// skipped, never retried, and never fails the triggering operation.
type Dispatcher struct {
	log      *slog.Logger
	registry contract.IRegistry
}

func NewDispatcher(log *slog.Logger, registry contract.IRegistry) *Dispatcher {
	return &Dispatcher{log: log, registry: registry}
}

// ToTopic delivers the event to every session subscribed to the
// topic, exactly once per session.
func (d *Dispatcher) ToTopic(ctx context.Context, topic domain.TopicRef, e event.DomainEvent) {
	d.deliver(ctx, d.registry.SinksForTopic(topic), e)
}

// ToTopicExcept delivers to the topic's subscribers, skipping one
// session. Used for typing so the sender never sees its own echo.
func (d *Dispatcher) ToTopicExcept(ctx context.Context, topic domain.TopicRef, exceptSessionID string, e event.DomainEvent) {
	d.deliver(ctx, d.registry.SinksForTopicExcept(topic, exceptSessionID), e)
}

// ToIdentity delivers to every live session the identity owns,
// independent of topic subscriptions (multi-device).
func (d *Dispatcher) ToIdentity(ctx context.Context, userID string, e event.DomainEvent) {
	d.deliver(ctx, d.registry.SessionsFor(userID), e)
}

// ToWorkspaces delivers to each listed workspace topic. Presence and
// status changes spread this way: breadth is the number of shared
// workspaces, not channels.
func (d *Dispatcher) ToWorkspaces(ctx context.Context, workspaceIDs []string, e event.DomainEvent) {
	for _, id := range workspaceIDs {
		d.ToTopic(ctx, domain.WorkspaceTopic(id), e)
	}
}

// NotifyMentions sends a dedicated notification to every live session
// of every identity mentioned in the message, whether or not those
// sessions are subscribed to the message's topic.
func (d *Dispatcher) NotifyMentions(ctx context.Context, msg domain.Message) {
	if len(msg.Mentions) == 0 {
		return
	}
	notification := event.NewMentionNotification(msg)
	for _, mentioned := range msg.Mentions {
		d.ToIdentity(ctx, mentioned.ID, notification)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sinks []contract.EventSink, e event.DomainEvent) {
	for _, sink := range sinks {
		if err := sink.Consume(ctx, e); err != nil {
			d.log.Warn("event delivery failed",
				"event", e.EventName(),
				"session_id", sink.ID(),
				"error", err)
		}
	}
}
