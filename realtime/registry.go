package realtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"sync"
)

type Set map[string]struct{}

// Registry is the process-wide view of live sessions: which identity
// owns which sessions, and which sessions subscribe to which topics.
// An identity is online iff it owns at least one live session; the
// entry disappears with the last session. All maps are guarded by one
// RWMutex so transition decisions (first session in, last session out)
// are atomic with respect to concurrent connects and disconnects.
type Registry struct {
	mu               sync.RWMutex
	sinks            map[string]contract.EventSink // session id -> sink
	sessionIdentity  map[string]string             // session id -> user id
	identitySessions map[string]Set                // user id -> session ids
	topicSessions    map[domain.TopicRef]Set       // topic -> session ids
	sessionTopics    map[string]map[domain.TopicRef]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:            make(map[string]contract.EventSink),
		sessionIdentity:  make(map[string]string),
		identitySessions: make(map[string]Set),
		topicSessions:    make(map[domain.TopicRef]Set),
		sessionTopics:    make(map[string]map[domain.TopicRef]struct{}),
	}
}

// Register adds a live session without an owning identity yet.
// Sessions exist pre-authentication; Bind attaches the identity later.
func (r *Registry) Register(sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[sink.ID()] = sink
}

// Bind attaches an authenticated identity to a session and reports
// whether the identity transitioned from offline to online.
func (r *Registry) Bind(sessionID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sinks[sessionID]; !ok {
		return false
	}
	r.sessionIdentity[sessionID] = userID

	set, existed := r.identitySessions[userID]
	if !existed {
		set = make(Set)
		r.identitySessions[userID] = set
	}
	set[sessionID] = struct{}{}
	return !existed
}

// Drop removes a session and every subscription it held. It reports
// the owning identity and whether this was the identity's last
// session, deciding the offline transition inside the lock so two
// concurrent disconnects cannot both claim it.
func (r *Registry) Drop(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sinks, sessionID)
	for topic := range r.sessionTopics[sessionID] {
		r.removeFromTopic(sessionID, topic)
	}
	delete(r.sessionTopics, sessionID)

	userID, ok := r.sessionIdentity[sessionID]
	if !ok {
		return "", false
	}
	delete(r.sessionIdentity, sessionID)

	set := r.identitySessions[userID]
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.identitySessions, userID)
		return userID, true
	}
	return userID, false
}

func (r *Registry) Subscribe(sessionID string, topic domain.TopicRef) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sinks[sessionID]; !ok {
		return
	}
	if _, ok := r.topicSessions[topic]; !ok {
		r.topicSessions[topic] = make(Set)
	}
	r.topicSessions[topic][sessionID] = struct{}{}

	if _, ok := r.sessionTopics[sessionID]; !ok {
		r.sessionTopics[sessionID] = make(map[domain.TopicRef]struct{})
	}
	r.sessionTopics[sessionID][topic] = struct{}{}
}

// Unsubscribe is idempotent; leaving a topic never subscribed to is a
// no-op.
func (r *Registry) Unsubscribe(sessionID string, topic domain.TopicRef) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeFromTopic(sessionID, topic)
	if topics, ok := r.sessionTopics[sessionID]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(r.sessionTopics, sessionID)
		}
	}
}

// removeFromTopic must be called with the write lock held. Empty topic
// sets are removed entirely to avoid leaking entries over time.
func (r *Registry) removeFromTopic(sessionID string, topic domain.TopicRef) {
	if members, ok := r.topicSessions[topic]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.topicSessions, topic)
		}
	}
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identitySessions[userID]) > 0
}

// SessionsFor returns the sinks of every live session the identity
// owns, across all devices.
func (r *Registry) SessionsFor(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for sessionID := range r.identitySessions[userID] {
		if sink, ok := r.sinks[sessionID]; ok {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (r *Registry) SinksForTopic(topic domain.TopicRef) []contract.EventSink {
	return r.SinksForTopicExcept(topic, "")
}

// SinksForTopicExcept snapshots the subscribers of a topic, minus one
// session (used to keep typing echoes away from their sender). Each
// session appears at most once.
func (r *Registry) SinksForTopicExcept(topic domain.TopicRef, exceptSessionID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.topicSessions[topic]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for sessionID := range members {
		if sessionID == exceptSessionID {
			continue
		}
		if sink, ok := r.sinks[sessionID]; ok {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// PresentIdentities snapshots the owning identities of every session
// subscribed to the topic at this instant. Unauthenticated sessions do
// not count toward presence.
func (r *Registry) PresentIdentities(topic domain.TopicRef) map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	present := make(map[string]struct{})
	for sessionID := range r.topicSessions[topic] {
		if userID, ok := r.sessionIdentity[sessionID]; ok {
			present[userID] = struct{}{}
		}
	}
	return present
}
