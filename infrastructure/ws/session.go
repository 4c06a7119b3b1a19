package ws

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/realtime"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxInboundSize = 64 * 1024
)

// Session is one live websocket connection. It is the EventSink the
// coordination core fans events into: Consume never blocks, a session
// whose outbound buffer is full loses the event and the loss is
// accounted for.
type Session struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	limiter     *realtime.RateLimiter
	limits      realtime.Limits
	coordinator *realtime.Coordinator
	monitor     *observability.Monitoring
	log         *slog.Logger

	mu   sync.RWMutex
	user domain.User

	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(conn *websocket.Conn, sendBuffer int, limits realtime.Limits, coordinator *realtime.Coordinator, monitor *observability.Monitoring, log *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:          id,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		limiter:     realtime.NewRateLimiter(),
		limits:      limits,
		coordinator: coordinator,
		monitor:     monitor,
		log:         log.With("session_id", id),
		done:        make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) identity() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) setIdentity(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// Consume queues one outbound event without blocking. A full buffer
// means the client is not draining its socket; the event is dropped
// and the session keeps running.
func (s *Session) Consume(_ context.Context, e event.DomainEvent) error {
	frame, err := encode(e.EventName(), e)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", e.EventName(), err)
	}

	select {
	case <-s.done:
		return fmt.Errorf("session %s: closed, dropped %s", s.id, e.EventName())
	default:
	}

	select {
	case s.send <- frame:
		s.monitor.EventDelivered()
		return nil
	default:
		s.monitor.EventDropped()
		return fmt.Errorf("session %s: outbound buffer full, dropped %s", s.id, e.EventName())
	}
}

// reply sends a session-scoped frame through the same outbound buffer
// as fanned-out events, so per-connection ordering holds.
func (s *Session) reply(eventName string, data any) {
	frame, err := encode(eventName, data)
	if err != nil {
		s.log.Error("encoding reply failed", "event", eventName, "error", err)
		return
	}
	select {
	case s.send <- frame:
	default:
		s.monitor.EventDropped()
	}
}

func (s *Session) sendError(err error) {
	s.reply("error", ErrorReply{Message: err.Error()})
}

// readPump is the session's single reader. It owns the connection's
// read side and drives session teardown when the client goes away.
func (s *Session) readPump(ctx context.Context) {
	defer s.close()

	s.conn.SetReadLimit(maxInboundSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", "error", err)
			}
			return
		}
		s.handleInbound(ctx, raw)
	}
}

// writePump is the session's single writer: outbound frames and pings
// both go through here.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// allow gates one throttled op. Denial is reported to the client and
// counted, nothing else happens.
func (s *Session) allow(action string, limit realtime.Limit) bool {
	if s.limiter.Allow(action, limit) {
		return true
	}
	s.monitor.RateLimited()
	s.sendError(fmt.Errorf("%w: %s", apperrors.ErrRateLimited, action))
	return false
}

// handleInbound decodes one envelope and routes it. Every op the wire
// knows is handled here; anything else is ErrUnknownOp.
func (s *Session) handleInbound(ctx context.Context, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.sendError(fmt.Errorf("%w: %v", apperrors.ErrInvalidPayload, err))
		return
	}
	user := s.identity()

	switch env.Op {
	case OpJoinTopic:
		payload, err := decodePayload[TopicPayload](env.Data)
		if err != nil {
			s.sendError(err)
			return
		}
		topic, err := domain.ParseTopicRef(payload.TopicRef)
		if err != nil {
			s.sendError(err)
			return
		}
		if err := s.coordinator.JoinTopic(ctx, s.id, user.ID, topic); err != nil {
			s.sendError(err)
			return
		}
		s.reply("joined", TopicReply{TopicRef: topic.String()})

	case OpLeaveTopic:
		payload, err := decodePayload[TopicPayload](env.Data)
		if err != nil {
			s.sendError(err)
			return
		}
		topic, err := domain.ParseTopicRef(payload.TopicRef)
		if err != nil {
			s.sendError(err)
			return
		}
		s.coordinator.LeaveTopic(s.id, topic)
		s.reply("left", TopicReply{TopicRef: topic.String()})

	case OpSendMessage:
		if !s.allow(OpSendMessage, s.limits.SendMessage) {
			return
		}
		payload, err := decodePayload[SendMessagePayload](env.Data)
		if err != nil {
			s.sendError(err)
			return
		}
		topic, err := domain.ParseTopicRef(payload.TopicRef)
		if err != nil {
			s.sendError(err)
			return
		}
		if err := s.coordinator.SendMessage(ctx, user.ID, topic, payload.Content, payload.Mentions, toAttachments(payload.Attachments)); err != nil {
			s.sendError(err)
			return
		}
		s.monitor.MessageCreated()

	case OpEditMessage:
		if !s.allow(OpEditMessage, s.limits.EditMessage) {
			return
		}
		payload, err := decodePayload[EditMessagePayload](env.Data)
		if err != nil {
			s.sendError(err)
			return
		}
		if err := s.coordinator.EditMessage(ctx, user.ID, uuid.MustParse(payload.MessageID), payload.Content, payload.Mentions, toAttachments(payload.Attachments)); err != nil {
			s.sendError(err)
		}

	case OpDeleteMessage:
		if !s.allow(OpDeleteMessage, s.limits.DeleteMessage) {
			return
		}
		payload, err := decodePayload[DeleteMessagePayload](env.Data)
		if err != nil {
			s.sendError(err)
			return
		}
		if err := s.coordinator.DeleteMessage(ctx, user.ID, uuid.MustParse(payload.MessageID)); err != nil {
			s.sendError(err)
		}

	case OpAddReaction:
		payload, err := decodePayload[ReactionPayload](env.Data)
		if err != nil {
			s.sendError(err)
			return
		}
		if err := s.coordinator.AddReaction(ctx, user.ID, uuid.MustParse(payload.MessageID), payload.Emoji); err != nil {
			s.sendError(err)
		}

	case OpRemoveReaction:
		payload, err := decodePayload[ReactionPayload](env.Data)
		if err != nil {
			s.sendError(err)
			return
		}
		if err := s.coordinator.RemoveReaction(ctx, user.ID, uuid.MustParse(payload.MessageID), payload.Emoji); err != nil {
			s.sendError(err)
		}

	case OpSetTyping:
		if !s.allow(OpSetTyping, s.limits.Typing) {
			return
		}
		payload, err := decodePayload[TypingPayload](env.Data)
		if err != nil {
			return
		}
		topic, err := domain.ParseTopicRef(payload.TopicRef)
		if err != nil {
			return
		}
		s.coordinator.SetTyping(ctx, s.id, user, topic, payload.IsTyping)

	case OpMarkRead:
		payload, err := decodePayload[TopicPayload](env.Data)
		if err != nil {
			s.sendError(err)
			return
		}
		topic, err := domain.ParseTopicRef(payload.TopicRef)
		if err != nil {
			s.sendError(err)
			return
		}
		if err := s.coordinator.MarkRead(ctx, user.ID, topic); err != nil {
			s.sendError(err)
		}

	case OpSetStatus:
		payload, err := decodePayload[SetStatusPayload](env.Data)
		if err != nil {
			s.sendError(err)
			return
		}
		status := domain.Status(payload.Status)
		if payload.Status == "" {
			status = domain.StatusCustom
		}
		if err := s.coordinator.SetStatus(ctx, user.ID, status, payload.CustomStatus); err != nil {
			s.sendError(err)
			return
		}
		// Confirmed to the caller even when no workspace fan-out reaches it.
		s.reply("statusSet", StatusReply{Status: string(status), CustomStatus: payload.CustomStatus})

	default:
		s.sendError(fmt.Errorf("%w: %q", apperrors.ErrUnknownOp, env.Op))
	}
}

func toAttachments(payloads []AttachmentPayload) []domain.Attachment {
	if len(payloads) == 0 {
		return nil
	}
	attachments := make([]domain.Attachment, 0, len(payloads))
	for _, p := range payloads {
		attachments = append(attachments, domain.Attachment{
			URL:      p.URL,
			Filename: p.Filename,
			MimeType: p.MimeType,
			Size:     p.Size,
		})
	}
	return attachments
}
