package ws

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"chat-relay/realtime"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to websocket sessions and hands them
// to the coordination core. Credentials are verified exactly once, at
// handshake time; a bad or absent credential leaves the session
// connected but unauthenticated.
type Server struct {
	log         *slog.Logger
	coordinator *realtime.Coordinator
	store       contract.IStore
	verifier    contract.IVerifier
	monitor     *observability.Monitoring
	limits      realtime.Limits
	sendBuffer  int
	upgrader    websocket.Upgrader
}

func NewServer(log *slog.Logger, coordinator *realtime.Coordinator, store contract.IStore, verifier contract.IVerifier, monitor *observability.Monitoring, limits realtime.Limits, sendBuffer int) *Server {
	return &Server{
		log:         log,
		coordinator: coordinator,
		store:       store,
		verifier:    verifier,
		monitor:     monitor,
		limits:      limits,
		sendBuffer:  sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	session := NewSession(conn, s.sendBuffer, s.limits, s.coordinator, s.monitor, s.log)
	s.coordinator.Register(session)
	s.monitor.SessionOpened()

	ctx := r.Context()
	reply := ConnectedReply{SessionID: session.ID()}
	if credential := extractCredential(r); credential != "" {
		if user, err := s.authenticate(r, session, credential); err != nil {
			session.log.Warn("handshake authentication failed", "error", err)
		} else {
			reply.User = user
		}
	}

	go session.writePump()
	session.reply("connected", reply)

	session.readPump(ctx)

	s.coordinator.Disconnect(ctx, session.ID())
	s.monitor.SessionClosed()
}

func (s *Server) authenticate(r *http.Request, session *Session, credential string) (any, error) {
	userID, err := s.verifier.Verify(credential)
	if err != nil {
		return nil, err
	}
	user, err := s.store.UserByID(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	session.setIdentity(user)
	if _, err := s.coordinator.Authenticate(r.Context(), session.ID(), user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// extractCredential accepts either a token query parameter or a
// Bearer authorization header.
func extractCredential(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}
