package model

import "time"

// SignalLogCapacity is how many polled signals are kept, newest first.
const SignalLogCapacity = 50

// SignalLog is a snapshot of a polled signal, kept for display.
type SignalLog struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	SignalID     string    `gorm:"size:64;index" json:"id"`
	EA           string    `gorm:"size:64" json:"ea"`
	Asset        string    `gorm:"size:50" json:"asset"`
	Action       string    `gorm:"size:10" json:"action"`
	Price        string    `gorm:"size:32" json:"price"`
	TakeProfit   string    `gorm:"size:32" json:"tp"`
	StopLoss     string    `gorm:"size:32" json:"sl"`
	SignalTime   time.Time `json:"time"`
	LatestUpdate time.Time `gorm:"index" json:"latestupdate"`
	ReceivedAt   time.Time `gorm:"index" json:"receivedAt"`
}

func (SignalLog) TableName() string {
	return "signal_logs"
}
