package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// legacyText decodes a JSON string or number into its textual form.
// Older clients wrote lotSize and numberOfTrades either way.
type legacyText string

func (t *legacyText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = legacyText(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*t = legacyText(n.String())
	return nil
}

type legacySymbol struct {
	Symbol         string     `json:"symbol"`
	LotSize        legacyText `json:"lotSize"`
	Direction      string     `json:"direction"`
	Platform       string     `json:"platform"`
	NumberOfTrades legacyText `json:"numberOfTrades"`
	ActivatedAt    string     `json:"activatedAt"`
}

// LegacyAccount is the shape of the mt4Account/mt5Account preference blobs.
type LegacyAccount struct {
	Login     string `json:"login"`
	Password  string `json:"password"`
	Server    string `json:"server"`
	Connected bool   `json:"connected"`
}

// DecodeLegacySymbols parses one legacy symbol bucket. activatedAt was serialized as an
// ISO string and is re-parsed here with millisecond precision; entries whose activatedAt
// cannot be parsed keep a zero time and are left for the caller to stamp.
func DecodeLegacySymbols(bucket Bucket, data []byte) ([]SymbolConfig, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var raw []legacySymbol
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s symbols: %w", bucket, err)
	}

	configs := make([]SymbolConfig, 0, len(raw))
	for _, r := range raw {
		symbol := NormalizeSymbol(r.Symbol)
		if symbol == "" {
			continue
		}

		platform, ok := bucket.Platform()
		if !ok {
			platform, ok = ParsePlatform(r.Platform)
			if !ok {
				platform = PlatformMT5
			}
		}

		trades, err := strconv.Atoi(string(r.NumberOfTrades))
		if err != nil || trades < 1 {
			trades = 1
		}

		direction := strings.ToUpper(strings.TrimSpace(r.Direction))
		if direction != DirectionBuy && direction != DirectionSell {
			direction = DirectionBoth
		}

		var activatedAt time.Time
		if r.ActivatedAt != "" {
			if ts, err := time.Parse(time.RFC3339Nano, r.ActivatedAt); err == nil {
				activatedAt = ts.UTC().Truncate(time.Millisecond)
			}
		}

		configs = append(configs, SymbolConfig{
			Symbol:         symbol,
			Bucket:         bucket,
			LotSize:        string(r.LotSize),
			Direction:      direction,
			Platform:       platform,
			NumberOfTrades: trades,
			ActivatedAt:    activatedAt,
		})
	}

	return configs, nil
}

// DecodeLegacyAccount parses an mt4Account/mt5Account blob.
func DecodeLegacyAccount(data []byte) (*LegacyAccount, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var acc LegacyAccount
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("decode legacy account: %w", err)
	}
	return &acc, nil
}
