package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eabridge/src/externalmodel"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct{}

func (staticTokens) IssueSession(requestID, platform string) (string, error) {
	return "tok-" + requestID + "-" + platform, nil
}

// terminalStub accepts one session, records the frames it receives and lets the
// test push frames back.
type terminalStub struct {
	authHeader chan string
	received   chan externalmodel.TerminalCommand
	closed     chan struct{}
	push       chan string
}

func newTerminalStub(t *testing.T) (*terminalStub, *httptest.Server) {
	stub := &terminalStub{
		authHeader: make(chan string, 1),
		received:   make(chan externalmodel.TerminalCommand, 10),
		closed:     make(chan struct{}),
		push:       make(chan string, 10),
	}
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.authHeader <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for msg := range stub.push {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
					return
				}
			}
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				close(stub.closed)
				return
			}
			var cmd externalmodel.TerminalCommand
			if json.Unmarshal(raw, &cmd) == nil {
				stub.received <- cmd
			}
		}
	}))
	t.Cleanup(func() {
		close(stub.push)
		server.Close()
	})
	return stub, server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestTerminalConnectorSession(t *testing.T) {
	stub, server := newTerminalStub(t)
	connector := newTerminalConnector(Config{TerminalURL: wsURL(server), TerminalDialTimeout: time.Second}, staticTokens{})

	inbox := make(chan []byte, 10)
	ctx := context.Background()
	session, err := connector.Open(ctx, externalmodel.SessionRequest{
		RequestID:   "req-1",
		Platform:    "MT5",
		Symbol:      "EURUSD",
		Credentials: externalmodel.Credentials{Login: "5001", Password: "pw", Server: "Demo"},
	}, func(raw []byte) { inbox <- raw })
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-req-1-MT5", <-stub.authHeader)

	login := <-stub.received
	assert.Equal(t, externalmodel.CommandLogin, login.Type)
	require.NotNil(t, login.Credentials)
	assert.Equal(t, "pw", login.Credentials.Password)

	stub.push <- `{"type":"authentication_success","message":"ok"}`
	select {
	case raw := <-inbox:
		msg, err := externalmodel.ParseTerminalMessage(raw)
		require.NoError(t, err)
		assert.Equal(t, externalmodel.MessageAuthSuccess, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}

	require.NoError(t, session.Send(ctx, externalmodel.TerminalCommand{
		Type:      externalmodel.CommandPlaceOrder,
		RequestID: "req-1",
		Order:     &externalmodel.OrderInstruction{Index: 0, Symbol: "EURUSD", Side: "BUY", LotSize: "0.1"},
	}))
	order := <-stub.received
	assert.Equal(t, externalmodel.CommandPlaceOrder, order.Type)
	assert.Nil(t, order.Credentials, "credentials only travel in the login frame")

	require.NoError(t, session.Release(ctx))
	cleanup := <-stub.received
	assert.Equal(t, externalmodel.CommandCleanup, cleanup.Type)

	select {
	case <-stub.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection not closed on release")
	}

	assert.NoError(t, session.Release(ctx), "second release is a no-op")
	assert.ErrorIs(t, session.Send(ctx, externalmodel.TerminalCommand{Type: externalmodel.CommandVerify}), ErrSessionReleased)
	select {
	case raw := <-inbox:
		t.Fatalf("unexpected frame after release: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTerminalConnectorLostConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, _, _ = conn.ReadMessage()
		_ = conn.Close()
	}))
	defer server.Close()

	connector := newTerminalConnector(Config{TerminalURL: wsURL(server), TerminalDialTimeout: time.Second}, staticTokens{})
	inbox := make(chan []byte, 1)
	session, err := connector.Open(context.Background(), externalmodel.SessionRequest{RequestID: "req-2", Platform: "MT4"}, func(raw []byte) { inbox <- raw })
	require.NoError(t, err)
	defer session.Release(context.Background())

	select {
	case raw := <-inbox:
		msg, err := externalmodel.ParseTerminalMessage(raw)
		require.NoError(t, err)
		assert.Equal(t, externalmodel.MessageClose, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("lost connection not reported")
	}
}

func TestNewTerminalConnectorRequiresTLS(t *testing.T) {
	_, err := NewTerminalConnector(Config{TerminalURL: "ws://terminal.example.com/ws"}, staticTokens{})
	assert.Error(t, err)

	_, err = NewTerminalConnector(Config{TerminalURL: "wss://terminal.example.com/ws"}, staticTokens{})
	assert.NoError(t, err)
}
