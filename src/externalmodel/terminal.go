package externalmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrProtocolParse marks a terminal message that could not be decoded.
var ErrProtocolParse = errors.New("terminal message parse error")

// Inbound message types reported by the execution target.
const (
	MessageStep          = "step"
	MessageStepUpdate    = "step_update"
	MessageSuccess       = "success"
	MessageAuthSuccess   = "authentication_success"
	MessageAuthFailed    = "authentication_failed"
	MessageError         = "error"
	MessageClose         = "close"
	MessageTradeExecuted = "trade_executed"
)

// Outbound command types sent to the execution target.
const (
	CommandLogin      = "login"
	CommandPlaceOrder = "place_order"
	CommandVerify     = "verify"
	CommandCleanup    = "cleanup"
)

// TerminalMessage is one event from the execution target. Only Type is required.
type TerminalMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// IsStep reports progress narration (either spelling).
func (m TerminalMessage) IsStep() bool {
	return m.Type == MessageStep || m.Type == MessageStepUpdate
}

// ParseTerminalMessage decodes a raw frame. Unknown types are returned as-is; only
// undecodable frames or frames without a type are errors.
func ParseTerminalMessage(raw []byte) (TerminalMessage, error) {
	var m TerminalMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return TerminalMessage{}, fmt.Errorf("%w: %v", ErrProtocolParse, err)
	}
	m.Type = strings.ToLower(strings.TrimSpace(m.Type))
	if m.Type == "" {
		return TerminalMessage{}, fmt.Errorf("%w: missing type", ErrProtocolParse)
	}
	return m, nil
}

// Credentials travel only inside the login frame of an authenticated session.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

// OrderInstruction is what the terminal automation needs to place one order.
type OrderInstruction struct {
	Index      int    `json:"index"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	LotSize    string `json:"lotSize"`
	Price      string `json:"price,omitempty"`
	TakeProfit string `json:"tp,omitempty"`
	StopLoss   string `json:"sl,omitempty"`
}

// TerminalCommand is one frame sent to the execution target.
type TerminalCommand struct {
	Type        string            `json:"type"`
	RequestID   string            `json:"requestId"`
	Platform    string            `json:"platform,omitempty"`
	Credentials *Credentials      `json:"credentials,omitempty"`
	Order       *OrderInstruction `json:"order,omitempty"`
	Attempt     int               `json:"attempt,omitempty"`
}

// SessionRequest is what the execution target needs to open an automation surface.
// Credentials are plaintext in memory only for the duration of Open.
type SessionRequest struct {
	RequestID   string
	Platform    string
	Symbol      string
	Credentials Credentials
}
