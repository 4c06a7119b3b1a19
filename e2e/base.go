// Package e2e exercises a running server over a real websocket, the
// way a deployed client would. The suite needs E2E_SERVER_ADDR; when
// it is unset every scenario skips instead of failing.
package e2e

import (
	"chat-relay/auth"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseSuite struct {
	suite.Suite
	Config Config
	tokens *auth.Tokens
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR not set")
	}
	s.tokens = auth.NewTokens(s.Config.JWTSecret, time.Hour)
}

func (s *BaseSuite) banner(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Connect dials the instance as the given identity and consumes the
// connected handshake frame.
func (s *BaseSuite) Connect(userID string) *websocket.Conn {
	s.banner("connect " + userID)

	token, err := s.tokens.Generate(userID, "")
	s.Require().NoError(err)

	url := fmt.Sprintf("ws://%s/ws?token=%s", s.Config.ServerAddr, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })

	f := s.Read(conn)
	s.Require().Equal("connected", f.Event)
	return conn
}

type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *BaseSuite) Read(conn *websocket.Conn) Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, raw, err := conn.ReadMessage()
	s.Require().NoError(err)
	var f Frame
	s.Require().NoError(json.Unmarshal(raw, &f))
	return f
}

// WaitFor discards frames until the wanted event arrives.
func (s *BaseSuite) WaitFor(conn *websocket.Conn, eventName string) Frame {
	for i := 0; i < 20; i++ {
		f := s.Read(conn)
		if f.Event == eventName {
			return f
		}
	}
	s.Require().Failf("missing event", "event %s never arrived", eventName)
	return Frame{}
}

func (s *BaseSuite) Send(conn *websocket.Conn, op string, data any) {
	s.Require().NoError(conn.WriteJSON(map[string]any{"op": op, "data": data}))
}
