package model

import "time"

// Well-known key-value entries.
const (
	KVActiveSymbols = "activeSymbols"
	KVMT4Symbols    = "mt4Symbols"
	KVMT5Symbols    = "mt5Symbols"
	KVMT4Account    = "mt4Account"
	KVMT5Account    = "mt5Account"
	KVBotActive     = "botActive"
)

// KVEntry is a generic persisted preference. Values are JSON documents.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:100"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
