package model

import "time"

// ExecutionStatus values record how a dispatch ended.
const (
	ExecutionStatusSucceeded = "succeeded"
	ExecutionStatusPartial   = "partial"
	ExecutionStatusFailed    = "failed"
	// ExecutionStatusDiscarded marks a signal that never reached the execution target
	// (no trade configuration, no account, full queue).
	ExecutionStatusDiscarded = "discarded"
)

// ExecutionLog stores the conclusion of one execution request.
type ExecutionLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	RequestID string `gorm:"size:64;index" json:"request_id"`
	SignalID  string `gorm:"size:64;index" json:"signal_id"`

	// Snapshot of what was sent to the terminal
	Symbol     string `gorm:"size:50" json:"symbol"`
	Side       string `gorm:"size:10" json:"side"`
	Platform   string `gorm:"size:10" json:"platform"`
	LotSize    string `gorm:"size:32" json:"lot_size"`
	Price      string `gorm:"size:32" json:"price"`
	TakeProfit string `gorm:"size:32" json:"tp"`
	StopLoss   string `gorm:"size:32" json:"sl"`

	OrdersRequested int `json:"orders_requested"`
	OrdersSucceeded int `json:"orders_succeeded"`
	OrdersFailed    int `json:"orders_failed"`

	Status      string     `gorm:"size:20;not null;index" json:"status"` // see ExecutionStatus* constants
	Reason      string     `gorm:"size:255" json:"reason"`
	RequestedAt time.Time  `json:"requested_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (ExecutionLog) TableName() string {
	return "execution_logs"
}
