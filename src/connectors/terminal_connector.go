package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"eabridge/src/dispatch"
	"eabridge/src/externalmodel"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

var ErrSessionReleased = errors.New("terminal session released")

// SessionTokens issues the bearer token that binds a terminal session to a request.
type SessionTokens interface {
	IssueSession(requestID, platform string) (string, error)
}

// TerminalConnector drives the broker web terminal automation over a websocket.
// Credentials are sent once, inside the login frame, after the authenticated upgrade.
type TerminalConnector struct {
	url       string
	tokens    SessionTokens
	dialer    *websocket.Dialer
	writeWait time.Duration
}

func NewTerminalConnector(cfg Config, tokens SessionTokens) (*TerminalConnector, error) {
	if cfg.TerminalURL == "" {
		return nil, errors.New("TERMINAL_URL is required")
	}
	if !strings.HasPrefix(cfg.TerminalURL, "wss://") && !strings.HasPrefix(cfg.TerminalURL, "ws://localhost") && !strings.HasPrefix(cfg.TerminalURL, "ws://127.0.0.1") {
		return nil, fmt.Errorf("TERMINAL_URL must use wss:// (plain ws only on loopback): %s", cfg.TerminalURL)
	}
	return newTerminalConnector(cfg, tokens), nil
}

func newTerminalConnector(cfg Config, tokens SessionTokens) *TerminalConnector {
	writeWait := cfg.TerminalWriteWait
	if writeWait <= 0 {
		writeWait = 5 * time.Second
	}
	return &TerminalConnector{
		url:    cfg.TerminalURL,
		tokens: tokens,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.TerminalDialTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		writeWait: writeWait,
	}
}

// Open dials the terminal, starts delivering its frames to inbox and logs in.
func (c *TerminalConnector) Open(ctx context.Context, req externalmodel.SessionRequest, inbox dispatch.Inbox) (dispatch.Session, error) {
	token, err := c.tokens.IssueSession(req.RequestID, req.Platform)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("terminal dial failed: %w", err)
	}

	s := &terminalSession{
		conn:      conn,
		requestID: req.RequestID,
		platform:  req.Platform,
		writeWait: c.writeWait,
		released:  make(chan struct{}),
	}
	go s.readLoop(inbox)

	creds := req.Credentials
	login := externalmodel.TerminalCommand{
		Type:        externalmodel.CommandLogin,
		RequestID:   req.RequestID,
		Platform:    req.Platform,
		Credentials: &creds,
	}
	if err := s.Send(ctx, login); err != nil {
		_ = s.Release(ctx)
		return nil, fmt.Errorf("send login: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"component": "terminal",
		"requestID": req.RequestID,
		"platform":  req.Platform,
		"symbol":    req.Symbol,
	}).Info("Terminal session opened")
	return s, nil
}

type terminalSession struct {
	conn      *websocket.Conn
	requestID string
	platform  string
	writeWait time.Duration

	writeMu     sync.Mutex
	releaseOnce sync.Once
	released    chan struct{}
}

// readLoop forwards text frames. A connection lost before Release is reported as a close message.
func (s *terminalSession) readLoop(inbox dispatch.Inbox) {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.released:
				return
			default:
			}
			logger.WithFields(map[string]interface{}{
				"component": "terminal",
				"requestID": s.requestID,
			}).WithError(err).Warn("Terminal connection lost")
			lost, _ := json.Marshal(externalmodel.TerminalMessage{Type: externalmodel.MessageClose, Message: "connection lost"})
			inbox(lost)
			return
		}
		inbox(msg)
	}
}

func (s *terminalSession) Send(ctx context.Context, cmd externalmodel.TerminalCommand) error {
	select {
	case <-s.released:
		return ErrSessionReleased
	default:
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(s.writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Release asks the terminal to clear storage, cache and cookies, then closes the connection.
func (s *terminalSession) Release(ctx context.Context) error {
	var err error
	s.releaseOnce.Do(func() {
		cleanup := externalmodel.TerminalCommand{Type: externalmodel.CommandCleanup, RequestID: s.requestID, Platform: s.platform}
		if sendErr := s.Send(ctx, cleanup); sendErr != nil {
			logger.WithFields(map[string]interface{}{
				"component": "terminal",
				"requestID": s.requestID,
			}).WithError(sendErr).Warn("Terminal cleanup not delivered")
		}

		close(s.released)

		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.writeWait))
		s.writeMu.Unlock()

		err = s.conn.Close()
		logger.WithFields(map[string]interface{}{
			"component": "terminal",
			"requestID": s.requestID,
		}).Info("Terminal session released")
	})
	return err
}
