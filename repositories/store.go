package repositories

import (
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const defaultPageSize = 50

// Store is the BadgerDB persistence collaborator. Keys are plain
// prefixed strings so related records sit together for prefix scans:
//
//	user:{id}                          user record
//	useremail:{email}                  user id
//	workspace:{id}                     workspace record
//	wsmember:{workspaceID}:{userID}    membership marker
//	userws:{userID}:{workspaceID}      reverse membership index
//	channel:{id}                       channel record
//	convpart:{conversationID}:{userID} participant marker
//	msg:{topic}:{timestamp}:{uuid}     message, timestamp zero-padded
//	msgref:{uuid}                      message key for by-id lookup
//	unread:{userID}:{topic}            per-identity counter
//	topicunread:{topic}                aggregate counter
//
// Counter mutations run in serializable transactions retried on
// conflict, so concurrent increments never lose updates.
type Store struct {
	db       *badger.DB
	log      *slog.Logger
	pageSize int
}

func NewStore(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log, pageSize: defaultPageSize}
}

type userRecord struct {
	User         domain.User `json:"user"`
	PasswordHash string      `json:"passwordHash,omitempty"`
}

type workspaceRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type channelRecord struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
}

func userKey(id string) []byte      { return []byte("user:" + id) }
func emailKey(email string) []byte  { return []byte("useremail:" + email) }
func workspaceKey(id string) []byte { return []byte("workspace:" + id) }
func memberKey(wsID, userID string) []byte {
	return []byte(fmt.Sprintf("wsmember:%s:%s", wsID, userID))
}
func userWsKey(userID, wsID string) []byte { return []byte(fmt.Sprintf("userws:%s:%s", userID, wsID)) }
func channelKey(id string) []byte          { return []byte("channel:" + id) }
func partKey(convID, userID string) []byte {
	return []byte(fmt.Sprintf("convpart:%s:%s", convID, userID))
}
func msgRefKey(id uuid.UUID) []byte { return []byte("msgref:" + id.String()) }
func unreadKey(userID string, topic domain.TopicRef) []byte {
	return []byte(fmt.Sprintf("unread:%s:%s", userID, topic))
}
func topicUnreadKey(topic domain.TopicRef) []byte {
	return []byte("topicunread:" + topic.String())
}

// msgKey pads the timestamp to 19 digits so lexicographical order is
// chronological order, with the UUID as a collision disconnector.
func msgKey(topic domain.TopicRef, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", topic, at.UnixNano(), id))
}

func (s *Store) UserByID(_ context.Context, id string) (domain.User, error) {
	var rec userRecord
	if err := s.getJSON(userKey(id), &rec); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.User{}, fmt.Errorf("%w: %s", apperrors.ErrUserNotFound, id)
		}
		return domain.User{}, err
	}
	return rec.User, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, string, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.User{}, "", fmt.Errorf("%w: %s", apperrors.ErrUserNotFound, email)
		}
		return domain.User{}, "", err
	}

	var rec userRecord
	if err := s.getJSON(userKey(id), &rec); err != nil {
		return domain.User{}, "", err
	}
	return rec.User, rec.PasswordHash, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User, passwordHash string) error {
	return s.update(func(txn *badger.Txn) error {
		if err := setJSON(txn, userKey(user.ID), userRecord{User: user, PasswordHash: passwordHash}); err != nil {
			return err
		}
		return txn.Set(emailKey(user.Email), []byte(user.ID))
	})
}

func (s *Store) SetOnline(_ context.Context, id string, online bool, at time.Time) error {
	return s.update(func(txn *badger.Txn) error {
		var rec userRecord
		if err := getJSON(txn, userKey(id), &rec); err != nil {
			return err
		}
		rec.User.IsOnline = online
		if !online {
			rec.User.LastSeen = &at
		}
		return setJSON(txn, userKey(id), rec)
	})
}

func (s *Store) SetStatus(_ context.Context, id string, status domain.Status, customStatus string) (domain.User, error) {
	var updated domain.User
	err := s.update(func(txn *badger.Txn) error {
		var rec userRecord
		if err := getJSON(txn, userKey(id), &rec); err != nil {
			return err
		}
		rec.User.Status = status
		rec.User.CustomStatus = customStatus
		updated = rec.User
		return setJSON(txn, userKey(id), rec)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.User{}, fmt.Errorf("%w: %s", apperrors.ErrUserNotFound, id)
		}
		return domain.User{}, err
	}
	return updated, nil
}

func (s *Store) CreateWorkspace(_ context.Context, id, name string) error {
	return s.update(func(txn *badger.Txn) error {
		return setJSON(txn, workspaceKey(id), workspaceRecord{ID: id, Name: name})
	})
}

func (s *Store) AddWorkspaceMember(_ context.Context, workspaceID, userID string) error {
	return s.update(func(txn *badger.Txn) error {
		if err := txn.Set(memberKey(workspaceID, userID), nil); err != nil {
			return err
		}
		return txn.Set(userWsKey(userID, workspaceID), nil)
	})
}

func (s *Store) CreateChannel(_ context.Context, id, workspaceID, name string) error {
	return s.update(func(txn *badger.Txn) error {
		return setJSON(txn, channelKey(id), channelRecord{ID: id, WorkspaceID: workspaceID, Name: name})
	})
}

func (s *Store) CreateConversation(_ context.Context, id string, participantIDs []string) error {
	return s.update(func(txn *badger.Txn) error {
		for _, userID := range participantIDs {
			if err := txn.Set(partKey(id, userID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) WorkspacesFor(_ context.Context, userID string) ([]string, error) {
	prefix := []byte(fmt.Sprintf("userws:%s:", userID))
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

func (s *Store) IsWorkspaceMember(_ context.Context, workspaceID, userID string) (bool, error) {
	return s.exists(memberKey(workspaceID, userID))
}

func (s *Store) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	return s.exists(partKey(conversationID, userID))
}

func (s *Store) ChannelWorkspace(_ context.Context, channelID string) (string, error) {
	var rec channelRecord
	if err := s.getJSON(channelKey(channelID), &rec); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: channel %s", apperrors.ErrTopicNotFound, channelID)
		}
		return "", err
	}
	return rec.WorkspaceID, nil
}

// MembersOf resolves the identities eligible for a topic. Channel and
// workspace topics resolve through workspace membership, conversation
// topics through the participant list.
func (s *Store) MembersOf(ctx context.Context, topic domain.TopicRef) ([]domain.User, error) {
	switch topic.Kind {
	case domain.TopicChannel:
		workspaceID, err := s.ChannelWorkspace(ctx, topic.ID)
		if err != nil {
			return nil, err
		}
		return s.usersByPrefix(ctx, fmt.Sprintf("wsmember:%s:", workspaceID))
	case domain.TopicWorkspace:
		ok, err := s.exists(workspaceKey(topic.ID))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrTopicNotFound, topic)
		}
		return s.usersByPrefix(ctx, fmt.Sprintf("wsmember:%s:", topic.ID))
	case domain.TopicConversation:
		users, err := s.usersByPrefix(ctx, fmt.Sprintf("convpart:%s:", topic.ID))
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrTopicNotFound, topic)
		}
		return users, nil
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidTopicRef, topic)
	}
}

func (s *Store) usersByPrefix(ctx context.Context, prefixStr string) ([]domain.User, error) {
	prefix := []byte(prefixStr)
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.UserByID(ctx, id)
		if err != nil {
			s.log.Warn("membership references unknown user", "user_id", id)
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) CreateMessage(_ context.Context, msg domain.Message) error {
	key := msgKey(msg.Topic, msg.CreatedAt, msg.ID)
	return s.update(func(txn *badger.Txn) error {
		if err := setJSON(txn, key, msg); err != nil {
			return err
		}
		return txn.Set(msgRefKey(msg.ID), key)
	})
}

func (s *Store) Message(_ context.Context, id uuid.UUID) (domain.Message, error) {
	var msg domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		key, err := resolveRef(txn, id)
		if err != nil {
			return err
		}
		return getJSON(txn, key, &msg)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.Message{}, fmt.Errorf("%w: %s", apperrors.ErrMessageNotFound, id)
		}
		return domain.Message{}, err
	}
	return msg, nil
}

func (s *Store) UpdateMessage(_ context.Context, msg domain.Message) error {
	err := s.update(func(txn *badger.Txn) error {
		key, err := resolveRef(txn, msg.ID)
		if err != nil {
			return err
		}
		return setJSON(txn, key, msg)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", apperrors.ErrMessageNotFound, msg.ID)
	}
	return err
}

// Messages returns one page, newest first. The cursor is the last key
// of the previous page; nil starts from the newest message.
func (s *Store) Messages(_ context.Context, topic domain.TopicRef, cursor *string) ([]domain.Message, *string, error) {
	prefixStr := fmt.Sprintf("msg:%s:", topic)
	prefix := []byte(prefixStr)

	var out []domain.Message
	var lastKey string
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), 0xFF)
		if cursor != nil {
			seekKey = []byte(*cursor)
		}
		it.Seek(seekKey)
		// The seek position itself was already served on the previous page.
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == *cursor {
			it.Next()
		}
		for ; it.ValidForPrefix(prefix) && len(out) < s.pageSize; it.Next() {
			var msg domain.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			out = append(out, msg)
			lastKey = string(it.Item().Key())
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(out) < s.pageSize {
		return out, nil, nil
	}
	return out, &lastKey, nil
}

func (s *Store) IncrementUnread(_ context.Context, userID string, topic domain.TopicRef) (int, error) {
	return s.addCounter(unreadKey(userID, topic), 1, false)
}

func (s *Store) ResetUnread(_ context.Context, userID string, topic domain.TopicRef) (int, error) {
	key := unreadKey(userID, topic)
	var previous int
	err := s.update(func(txn *badger.Txn) error {
		var err error
		previous, err = getCounter(txn, key)
		if err != nil {
			return err
		}
		return txn.Set(key, []byte("0"))
	})
	return previous, err
}

func (s *Store) AddTopicUnread(_ context.Context, topic domain.TopicRef, delta int) (int, error) {
	return s.addCounter(topicUnreadKey(topic), delta, true)
}

// addCounter moves a counter by delta inside one retried transaction.
// Floored counters never go below zero, tolerating concurrent resets.
func (s *Store) addCounter(key []byte, delta int, floored bool) (int, error) {
	var value int
	err := s.update(func(txn *badger.Txn) error {
		current, err := getCounter(txn, key)
		if err != nil {
			return err
		}
		value = current + delta
		if floored && value < 0 {
			value = 0
		}
		return txn.Set(key, []byte(strconv.Itoa(value)))
	})
	return value, err
}

// update wraps db.Update with a retry on transaction conflict, which
// badger reports instead of blocking concurrent writers.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) getJSON(key []byte, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, key, v)
	})
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, bytes)
}

func getCounter(txn *badger.Txn, key []byte) (int, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var value int
	if err := item.Value(func(val []byte) error {
		parsed, perr := strconv.Atoi(string(val))
		if perr != nil {
			return perr
		}
		value = parsed
		return nil
	}); err != nil {
		return 0, err
	}
	return value, nil
}

func resolveRef(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get(msgRefKey(id))
	if err != nil {
		return nil, err
	}
	var key []byte
	err = item.Value(func(val []byte) error {
		key = append([]byte{}, val...)
		return nil
	})
	return key, err
}
