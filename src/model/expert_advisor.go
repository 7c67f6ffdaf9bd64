package model

import "time"

const DefaultEAName = "AutoTrader"

const (
	EAStatusConnected    = "connected"
	EAStatusDisconnected = "disconnected"
)

// ExpertAdvisor is a license bound on this device. The list order matters:
// the EA at position 0 is the one whose license scopes the polling session.
type ExpertAdvisor struct {
	ID                string    `gorm:"primaryKey;size:64" json:"id"`
	Name              string    `gorm:"size:200;not null" json:"name"`
	LicenseKey        string    `gorm:"size:200;not null;index" json:"licenseKey"`
	Status            string    `gorm:"size:20;not null" json:"status"`
	LicenseStatus     string    `gorm:"size:50" json:"licenseStatus"`
	Expires           string    `gorm:"size:50" json:"expires"`
	PhoneSecretSealed string    `gorm:"type:text" json:"-"`
	NotificationKey   string    `gorm:"size:200" json:"notificationKey,omitempty"`
	OwnerName         string    `gorm:"size:200" json:"ownerName,omitempty"`
	OwnerEmail        string    `gorm:"size:200" json:"ownerEmail,omitempty"`
	OwnerPhone        string    `gorm:"size:50" json:"ownerPhone,omitempty"`
	OwnerLogo         string    `gorm:"size:500" json:"ownerLogo,omitempty"`
	Position          int       `gorm:"not null;index" json:"position"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (ExpertAdvisor) TableName() string {
	return "expert_advisors"
}
