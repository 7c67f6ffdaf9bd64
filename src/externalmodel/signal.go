package externalmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"eabridge/src/utils"

	"github.com/shopspring/decimal"
)

// Signal is one row of the backend's signal table as served by the polling endpoint.
// Immutable once observed; LatestUpdate is the polling watermark.
type Signal struct {
	ID           string          `json:"id"`
	EA           string          `json:"ea"`
	Asset        string          `json:"asset"`
	Type         string          `json:"type,omitempty"`
	Action       string          `json:"action"`
	Price        decimal.Decimal `json:"price"`
	TakeProfit   decimal.Decimal `json:"tp"`
	StopLoss     decimal.Decimal `json:"sl"`
	Time         time.Time       `json:"time"`
	LatestUpdate time.Time       `json:"latestupdate"`
	Results      string          `json:"results,omitempty"`
}

// wireSignal keeps every field raw: the backend serves ids as numbers, prices as
// numbers or strings and timestamps in more than one layout.
type wireSignal struct {
	ID           json.RawMessage `json:"id"`
	EA           json.RawMessage `json:"ea"`
	Asset        string          `json:"asset"`
	Type         string          `json:"type"`
	Action       string          `json:"action"`
	Price        json.RawMessage `json:"price"`
	TP           json.RawMessage `json:"tp"`
	SL           json.RawMessage `json:"sl"`
	Time         json.RawMessage `json:"time"`
	LatestUpdate json.RawMessage `json:"latestupdate"`
	Results      string          `json:"results"`
}

func (s *Signal) UnmarshalJSON(b []byte) error {
	var w wireSignal
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	id, err := rawText(w.ID)
	if err != nil {
		return fmt.Errorf("signal id: %w", err)
	}
	if id == "" {
		return fmt.Errorf("signal without id")
	}
	ea, err := rawText(w.EA)
	if err != nil {
		return fmt.Errorf("signal %s ea: %w", id, err)
	}

	price, err := rawDecimal(w.Price)
	if err != nil {
		return fmt.Errorf("signal %s price: %w", id, err)
	}
	tp, err := rawDecimal(w.TP)
	if err != nil {
		return fmt.Errorf("signal %s tp: %w", id, err)
	}
	sl, err := rawDecimal(w.SL)
	if err != nil {
		return fmt.Errorf("signal %s sl: %w", id, err)
	}

	at, err := rawTime(w.Time)
	if err != nil {
		return fmt.Errorf("signal %s time: %w", id, err)
	}
	latest, err := rawTime(w.LatestUpdate)
	if err != nil {
		return fmt.Errorf("signal %s latestupdate: %w", id, err)
	}

	*s = Signal{
		ID:           id,
		EA:           ea,
		Asset:        strings.TrimSpace(w.Asset),
		Type:         w.Type,
		Action:       strings.ToUpper(strings.TrimSpace(w.Action)),
		Price:        price,
		TakeProfit:   tp,
		StopLoss:     sl,
		Time:         at,
		LatestUpdate: latest,
		Results:      w.Results,
	}
	return nil
}

func rawText(b json.RawMessage) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return "", nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func rawDecimal(b json.RawMessage) (decimal.Decimal, error) {
	s, err := rawText(b)
	if err != nil || s == "" {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

func rawTime(b json.RawMessage) (time.Time, error) {
	s, err := rawText(b)
	if err != nil {
		return time.Time{}, err
	}
	return utils.ParseTimestamp(s)
}

// SignalBatch is the polling endpoint's response body.
type SignalBatch struct {
	Signals []Signal `json:"signals"`
}
