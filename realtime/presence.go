package realtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Presence drives identity online/offline transitions from the
// session count held by the registry.
//
// Coming online persists the flag but emits nothing: clients learn
// who is online from their initial snapshot fetch. Going offline
// stamps last-seen and tells every shared workspace.
type Presence struct {
	log        *slog.Logger
	registry   contract.IRegistry
	store      contract.IStore
	dispatcher *Dispatcher
}

func NewPresence(log *slog.Logger, registry contract.IRegistry, store contract.IStore, dispatcher *Dispatcher) *Presence {
	return &Presence{log: log, registry: registry, store: store, dispatcher: dispatcher}
}

// SessionAuthenticated binds the session to its identity, flips the
// persisted online flag on the first session, and auto-joins the
// identity's workspace topics so presence and status fan-out reaches
// it. Returns the workspace ids joined.
func (p *Presence) SessionAuthenticated(ctx context.Context, sessionID, userID string) ([]string, error) {
	cameOnline := p.registry.Bind(sessionID, userID)
	if cameOnline {
		if err := p.store.SetOnline(ctx, userID, true, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("marking %s online: %w", userID, err)
		}
	}

	workspaceIDs, err := p.store.WorkspacesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range workspaceIDs {
		p.registry.Subscribe(sessionID, domain.WorkspaceTopic(id))
	}
	return workspaceIDs, nil
}

// SessionClosed tears down the session's registry state. If it was the
// identity's last session the offline transition fires exactly once:
// the persisted flag drops, last-seen is stamped, and PresenceChanged
// reaches every workspace the identity belongs to. Broadcast failures
// are logged, never surfaced.
func (p *Presence) SessionClosed(ctx context.Context, sessionID string) {
	userID, wentOffline := p.registry.Drop(sessionID)
	if !wentOffline {
		return
	}

	if err := p.store.SetOnline(ctx, userID, false, time.Now().UTC()); err != nil {
		p.log.Error("marking identity offline failed", "user_id", userID, "error", err)
	}

	workspaceIDs, err := p.store.WorkspacesFor(ctx, userID)
	if err != nil {
		p.log.Error("loading workspaces for presence broadcast failed", "user_id", userID, "error", err)
		return
	}
	p.dispatcher.ToWorkspaces(ctx, workspaceIDs, event.PresenceChanged{UserID: userID, IsOnline: false})
}
