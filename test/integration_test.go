package test

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/infrastructure/ws"
	"chat-relay/observability"
	"chat-relay/realtime"
	"chat-relay/repositories"
	"chat-relay/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type testServer struct {
	url    string
	tokens *auth.Tokens
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	req := require.New(t)
	ctx := context.Background()
	log := slog.Default()

	// Reduced value log size for testing
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	store := repositories.NewStore(db, log)
	for _, u := range []struct{ id, name string }{
		{"u1", "alice"}, {"u2", "bob"}, {"u3", "carol"},
	} {
		req.NoError(store.CreateUser(ctx, domain.User{ID: u.id, Email: u.name + "@example.com", Name: u.name}, ""))
	}
	req.NoError(store.CreateWorkspace(ctx, "w1", "Main"))
	req.NoError(store.AddWorkspaceMember(ctx, "w1", "u1"))
	req.NoError(store.AddWorkspaceMember(ctx, "w1", "u2"))
	req.NoError(store.AddWorkspaceMember(ctx, "w1", "u3"))
	req.NoError(store.CreateChannel(ctx, "general", "w1", "general"))
	req.NoError(store.CreateConversation(ctx, "42", []string{"u1", "u2"}))

	messages := services.NewMessageService(log, store, nil)
	registry := realtime.NewRegistry()
	coordinator := realtime.NewCoordinator(log, store, messages, registry)
	tokens := auth.NewTokens("integration-secret", time.Hour)
	monitor := observability.NewMonitoring(log)
	server := ws.NewServer(log, coordinator, store, tokens, monitor, realtime.DefaultLimits(), 64)

	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)

	return &testServer{
		url:    "ws" + strings.TrimPrefix(httpServer.URL, "http"),
		tokens: tokens,
	}
}

func (s *testServer) connect(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	req := require.New(t)

	url := s.url
	if userID != "" {
		token, err := s.tokens.Generate(userID, "")
		req.NoError(err)
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	t.Cleanup(func() { _ = conn.Close() })

	// Every session starts with the connected reply
	f := readFrame(t, conn)
	req.Equal("connected", f.Event)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

// waitFor skips unrelated frames until the wanted event shows up.
func waitFor(t *testing.T, conn *websocket.Conn, eventName string) frame {
	t.Helper()
	for i := 0; i < 20; i++ {
		f := readFrame(t, conn)
		if f.Event == eventName {
			return f
		}
	}
	t.Fatalf("event %s never arrived", eventName)
	return frame{}
}

func send(t *testing.T, conn *websocket.Conn, op string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"op": op, "data": data}))
}

func TestScenario_MessageReachesSubscribers(t *testing.T) {
	req := require.New(t)
	server := startServer(t)

	alice := server.connect(t, "u1")
	bob := server.connect(t, "u2")

	send(t, alice, "joinTopic", map[string]any{"topicRef": "channel:general"})
	waitFor(t, alice, "joined")
	send(t, bob, "joinTopic", map[string]any{"topicRef": "channel:general"})
	waitFor(t, bob, "joined")

	// When alice posts, bob sees the message first
	send(t, alice, "sendMessage", map[string]any{"topicRef": "channel:general", "content": "hello @bob"})

	f := waitFor(t, bob, "messageCreated")
	var payload struct {
		Message struct {
			Content  string `json:"content"`
			Topic    string `json:"topic"`
			Author   struct{ Name string }
			Mentions []struct {
				ID string `json:"id"`
			} `json:"mentions"`
		} `json:"message"`
	}
	req.NoError(json.Unmarshal(f.Data, &payload))
	req.Equal("hello @bob", payload.Message.Content)
	req.Equal("channel:general", payload.Message.Topic)
	req.Len(payload.Message.Mentions, 1)
	req.Equal("u2", payload.Message.Mentions[0].ID)

	// And his mention notification arrives on the same connection
	waitFor(t, bob, "notification")
}

func TestScenario_AbsentMemberAccruesUnread(t *testing.T) {
	req := require.New(t)
	server := startServer(t)

	alice := server.connect(t, "u1")
	carol := server.connect(t, "u3")

	send(t, alice, "joinTopic", map[string]any{"topicRef": "channel:general"})
	waitFor(t, alice, "joined")

	// carol is connected but not subscribed to the channel
	send(t, alice, "sendMessage", map[string]any{"topicRef": "channel:general", "content": "where is carol"})

	f := waitFor(t, carol, "unreadIncrement")
	var inc struct {
		Topic string `json:"topicRef"`
	}
	req.NoError(json.Unmarshal(f.Data, &inc))
	req.Equal("channel:general", inc.Topic)

	// Marking read brings the aggregate back down for subscribers
	send(t, carol, "markRead", map[string]any{"topicRef": "channel:general"})
	f = waitFor(t, alice, "unreadCountsChanged")
	var agg struct {
		Count int `json:"count"`
	}
	req.NoError(json.Unmarshal(f.Data, &agg))
}

func TestScenario_OutsiderCannotJoinConversation(t *testing.T) {
	req := require.New(t)
	server := startServer(t)

	carol := server.connect(t, "u3")

	send(t, carol, "joinTopic", map[string]any{"topicRef": "dm:42"})

	f := waitFor(t, carol, "error")
	var reply struct {
		Message string `json:"message"`
	}
	req.NoError(json.Unmarshal(f.Data, &reply))
	req.Contains(reply.Message, "participant")
}

func TestScenario_AnonymousSessionCannotSend(t *testing.T) {
	server := startServer(t)

	anon := server.connect(t, "")

	send(t, anon, "sendMessage", map[string]any{"topicRef": "channel:general", "content": "ghost"})
	waitFor(t, anon, "error")
}

func TestScenario_TypingSkipsTheSender(t *testing.T) {
	req := require.New(t)
	server := startServer(t)

	alice := server.connect(t, "u1")
	bob := server.connect(t, "u2")

	send(t, alice, "joinTopic", map[string]any{"topicRef": "channel:general"})
	waitFor(t, alice, "joined")
	send(t, bob, "joinTopic", map[string]any{"topicRef": "channel:general"})
	waitFor(t, bob, "joined")

	send(t, alice, "setTyping", map[string]any{"topicRef": "channel:general", "isTyping": true})

	f := waitFor(t, bob, "typing")
	var payload struct {
		User struct {
			Name string `json:"name"`
		} `json:"user"`
		IsTyping bool `json:"isTyping"`
	}
	req.NoError(json.Unmarshal(f.Data, &payload))
	req.Equal("alice", payload.User.Name)
	req.True(payload.IsTyping)

	// The sender must not see their own indicator; the next frame the
	// sender receives is their own follow-up echo test message
	send(t, bob, "sendMessage", map[string]any{"topicRef": "channel:general", "content": "ack"})
	f = waitFor(t, alice, "messageCreated")
	req.Equal("messageCreated", f.Event)
}

func TestScenario_SetStatusConfirmsTheCaller(t *testing.T) {
	req := require.New(t)
	server := startServer(t)

	alice := server.connect(t, "u1")

	send(t, alice, "setStatus", map[string]any{"status": "AWAY", "customStatus": "lunch"})

	// The caller gets a direct confirmation, independent of the
	// workspace statusChanged fan-out
	f := waitFor(t, alice, "statusSet")
	var reply struct {
		Status       string `json:"status"`
		CustomStatus string `json:"customStatus"`
	}
	req.NoError(json.Unmarshal(f.Data, &reply))
	req.Equal("AWAY", reply.Status)
	req.Equal("lunch", reply.CustomStatus)
}

func TestScenario_RateLimitKicksIn(t *testing.T) {
	req := require.New(t)
	server := startServer(t)

	alice := server.connect(t, "u1")
	send(t, alice, "joinTopic", map[string]any{"topicRef": "channel:general"})
	waitFor(t, alice, "joined")

	// The sixth message in the window is refused
	for i := 0; i < 6; i++ {
		send(t, alice, "sendMessage", map[string]any{"topicRef": "channel:general", "content": "spam"})
	}
	f := waitFor(t, alice, "error")
	var reply struct {
		Message string `json:"message"`
	}
	req.NoError(json.Unmarshal(f.Data, &reply))
	req.Contains(reply.Message, "rate")
}
