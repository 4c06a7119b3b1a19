package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/moderation"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MessageService is the message mutation side of the persistence
// collaborator. It resolves mentions before persistence so fan-out
// always has a concrete identity list, runs the moderation pass, and
// enforces author-only edit and delete.
type MessageService struct {
	log    *slog.Logger
	store  contract.IStore
	censor *moderation.Moderator
}

// NewMessageService builds the service. censor may be nil, in which
// case content passes through unmodified.
func NewMessageService(log *slog.Logger, store contract.IStore, censor *moderation.Moderator) *MessageService {
	return &MessageService{log: log, store: store, censor: censor}
}

func (s *MessageService) Create(ctx context.Context, authorID string, topic domain.TopicRef, content string, mentionIDs []string, attachments []domain.Attachment) (domain.Message, []string, error) {
	members, err := s.store.MembersOf(ctx, topic)
	if err != nil {
		return domain.Message{}, nil, fmt.Errorf("%w: %s", errors.ErrTopicNotFound, topic)
	}
	if err := checkAttachments(attachments); err != nil {
		return domain.Message{}, nil, err
	}

	author, err := s.store.UserByID(ctx, authorID)
	if err != nil {
		return domain.Message{}, nil, err
	}

	if s.censor != nil {
		content = s.censor.Censor(content)
	}
	if len(mentionIDs) == 0 && strings.Contains(content, "@") {
		mentionIDs = ResolveMentions(content, members)
	}

	msg := domain.Message{
		ID:          uuid.New(),
		Topic:       topic,
		Author:      author,
		Content:     content,
		Mentions:    pickUsers(members, mentionIDs),
		Attachments: attachments,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return domain.Message{}, nil, err
	}

	affected := lo.FilterMap(members, func(member domain.User, _ int) (string, bool) {
		return member.ID, member.ID != authorID
	})
	return msg, affected, nil
}

func (s *MessageService) Edit(ctx context.Context, editorID string, id uuid.UUID, content string, mentionIDs []string, attachments []domain.Attachment) (domain.Message, error) {
	msg, err := s.store.Message(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.Author.ID != editorID {
		return domain.Message{}, errors.ErrNotAllowed
	}
	if err := checkAttachments(attachments); err != nil {
		return domain.Message{}, err
	}

	if s.censor != nil {
		content = s.censor.Censor(content)
	}
	members, err := s.store.MembersOf(ctx, msg.Topic)
	if err != nil {
		return domain.Message{}, err
	}

	now := time.Now().UTC()
	msg.Content = content
	msg.EditedAt = &now
	msg.Mentions = pickUsers(members, mentionIDs)
	msg.Attachments = attachments
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// Delete tombstones the message; history keeps the entry.
func (s *MessageService) Delete(ctx context.Context, requesterID string, id uuid.UUID) (domain.Message, error) {
	msg, err := s.store.Message(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.Author.ID != requesterID {
		return domain.Message{}, errors.ErrNotAllowed
	}

	msg.Deleted = true
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (s *MessageService) AddReaction(ctx context.Context, userID string, id uuid.UUID, emoji string) (domain.Message, error) {
	msg, err := s.store.Message(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	msg.AddReaction(emoji, userID)
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (s *MessageService) RemoveReaction(ctx context.Context, userID string, id uuid.UUID, emoji string) (domain.Message, error) {
	msg, err := s.store.Message(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	msg.RemoveReaction(emoji, userID)
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// checkAttachments rejects declared content types the mimetype
// database does not know, and filenames whose extension contradicts
// the declared type. The bytes themselves live behind the object
// storage collaborator and are not re-inspected here.
func checkAttachments(attachments []domain.Attachment) error {
	for _, a := range attachments {
		declared := mimetype.Lookup(a.MimeType)
		if declared == nil {
			return fmt.Errorf("%w: %s", errors.ErrAttachmentType, a.MimeType)
		}
		ext := filepath.Ext(a.Filename)
		if ext == "" || declared.Extension() == "" {
			continue
		}
		if !strings.EqualFold(ext, declared.Extension()) {
			return fmt.Errorf("%w: %s does not match %s", errors.ErrAttachmentType, a.Filename, a.MimeType)
		}
	}
	return nil
}

func pickUsers(members []domain.User, ids []string) []domain.User {
	if len(ids) == 0 {
		return nil
	}
	byID := lo.KeyBy(members, func(u domain.User) string { return u.ID })
	return lo.FilterMap(ids, func(id string, _ int) (domain.User, bool) {
		user, ok := byID[id]
		return user, ok
	})
}
