package model

import (
	"strings"
	"time"
)

// Bucket identifies which symbol table a configuration was activated in.
// The legacy bucket predates the per-platform tables and carries its own platform field.
type Bucket string

const (
	BucketLegacy Bucket = "legacy"
	BucketMT4    Bucket = "mt4"
	BucketMT5    Bucket = "mt5"
)

// Buckets is the resolution order used when legacy data holds the same symbol more than once.
var Buckets = []Bucket{BucketLegacy, BucketMT4, BucketMT5}

type Platform string

const (
	PlatformMT4 Platform = "MT4"
	PlatformMT5 Platform = "MT5"
)

const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"
	DirectionBoth = "BOTH"
)

// ParseBucket accepts the bucket names used by the API ("legacy", "mt4", "mt5"), case-insensitive.
func ParseBucket(s string) (Bucket, bool) {
	switch Bucket(strings.ToLower(strings.TrimSpace(s))) {
	case BucketLegacy:
		return BucketLegacy, true
	case BucketMT4:
		return BucketMT4, true
	case BucketMT5:
		return BucketMT5, true
	}
	return "", false
}

// ParsePlatform accepts "MT4"/"MT5" in any case.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToUpper(strings.TrimSpace(s))) {
	case PlatformMT4:
		return PlatformMT4, true
	case PlatformMT5:
		return PlatformMT5, true
	}
	return "", false
}

// Platform returns the platform implied by a platform bucket. The legacy bucket implies none.
func (b Bucket) Platform() (Platform, bool) {
	switch b {
	case BucketMT4:
		return PlatformMT4, true
	case BucketMT5:
		return PlatformMT5, true
	}
	return "", false
}

// NormalizeSymbol is the canonical form used as the store key and for signal matching.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SymbolConfig is the per-instrument trade configuration. One row per symbol: the
// primary key makes "active in at most one bucket" a property of the schema.
type SymbolConfig struct {
	Symbol         string    `gorm:"primaryKey;size:50" json:"symbol"`
	Bucket         Bucket    `gorm:"size:20;not null;index" json:"bucket"`
	LotSize        string    `gorm:"size:32;not null" json:"lotSize"`
	Direction      string    `gorm:"size:10;not null" json:"direction"`
	Platform       Platform  `gorm:"size:10;not null" json:"platform"`
	NumberOfTrades int       `gorm:"not null" json:"numberOfTrades"`
	ActivatedAt    time.Time `gorm:"not null" json:"activatedAt"`
	UpdatedAt      time.Time `json:"-"`
}

func (SymbolConfig) TableName() string {
	return "symbol_configs"
}

// OrderSide applies the direction override: BUY or SELL forces the side, BOTH keeps the signal's action.
func (c SymbolConfig) OrderSide(signalAction string) string {
	switch c.Direction {
	case DirectionBuy, DirectionSell:
		return c.Direction
	}
	return strings.ToUpper(strings.TrimSpace(signalAction))
}

// Trades returns the configured trade count, never less than one.
func (c SymbolConfig) Trades() int {
	if c.NumberOfTrades < 1 {
		return 1
	}
	return c.NumberOfTrades
}
