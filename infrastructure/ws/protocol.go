// Package ws is the transport: one persistent full-duplex websocket
// per session, carrying JSON envelopes in both directions. Inbound
// envelopes are decoded into a closed set of typed payloads and
// validated before any handler runs; unknown ops and malformed
// payloads are session-scoped errors, never fatal.
package ws

import (
	apperrors "chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	OpJoinTopic      = "joinTopic"
	OpLeaveTopic     = "leaveTopic"
	OpSendMessage    = "sendMessage"
	OpEditMessage    = "editMessage"
	OpDeleteMessage  = "deleteMessage"
	OpAddReaction    = "addReaction"
	OpRemoveReaction = "removeReaction"
	OpSetTyping      = "setTyping"
	OpMarkRead       = "markRead"
	OpSetStatus      = "setStatus"
)

var validate = validator.New()

// Envelope is the inbound wire frame.
type Envelope struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// outEnvelope is the outbound wire frame. Event names come from the
// domain event variants or from the session-scoped replies below.
type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type AttachmentPayload struct {
	URL      string `json:"url" validate:"required,url"`
	Filename string `json:"filename" validate:"required"`
	MimeType string `json:"mimeType" validate:"required"`
	Size     int64  `json:"size" validate:"gte=0"`
}

type TopicPayload struct {
	TopicRef string `json:"topicRef" validate:"required"`
}

type SendMessagePayload struct {
	TopicRef    string              `json:"topicRef" validate:"required"`
	Content     string              `json:"content" validate:"required,min=1,max=4000"`
	Mentions    []string            `json:"mentions,omitempty" validate:"dive,required"`
	Attachments []AttachmentPayload `json:"attachments,omitempty" validate:"dive"`
}

type EditMessagePayload struct {
	MessageID   string              `json:"messageId" validate:"required,uuid"`
	Content     string              `json:"content" validate:"required,min=1,max=4000"`
	Mentions    []string            `json:"mentions,omitempty" validate:"dive,required"`
	Attachments []AttachmentPayload `json:"attachments,omitempty" validate:"dive"`
}

type DeleteMessagePayload struct {
	MessageID string `json:"messageId" validate:"required,uuid"`
}

type ReactionPayload struct {
	MessageID string `json:"messageId" validate:"required,uuid"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

type TypingPayload struct {
	TopicRef string `json:"topicRef" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

type SetStatusPayload struct {
	Status       string `json:"status" validate:"omitempty,oneof=ONLINE AWAY OFFLINE CUSTOM"`
	CustomStatus string `json:"customStatus" validate:"max=128"`
}

// decodePayload unmarshals and validates one typed payload.
func decodePayload[T any](raw json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", apperrors.ErrInvalidPayload, err)
	}
	if err := validate.Struct(payload); err != nil {
		return payload, fmt.Errorf("%w: %v", apperrors.ErrInvalidPayload, err)
	}
	return payload, nil
}

func encode(eventName string, data any) ([]byte, error) {
	return json.Marshal(outEnvelope{Event: eventName, Data: data})
}

// Session-scoped reply payloads (not domain events: they target only
// the originating session).

type ConnectedReply struct {
	SessionID string `json:"sessionId"`
	User      any    `json:"user"`
}

type TopicReply struct {
	TopicRef string `json:"topicRef"`
}

type StatusReply struct {
	Status       string `json:"status"`
	CustomStatus string `json:"customStatus,omitempty"`
}

type ErrorReply struct {
	Message string `json:"message"`
}
