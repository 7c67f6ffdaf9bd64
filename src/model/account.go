package model

import "time"

// AccountKeyUnified is the platform-agnostic account record kept next to the per-platform ones.
const AccountKeyUnified = "mt"

// AccountKey returns the record key of a per-platform account ("mt4", "mt5").
func AccountKey(p Platform) string {
	switch p {
	case PlatformMT4:
		return "mt4"
	case PlatformMT5:
		return "mt5"
	}
	return ""
}

// Account holds broker terminal credentials. The password is only ever stored sealed.
// The unified record ("mt") mirrors login/server/connected of the last platform used.
type Account struct {
	Key            string    `gorm:"primaryKey;size:20" json:"key"`
	Platform       Platform  `gorm:"size:10;not null" json:"platform"`
	Login          string    `gorm:"size:100" json:"login"`
	PasswordSealed string    `gorm:"type:text" json:"-"`
	Server         string    `gorm:"size:200" json:"server"`
	Connected      bool      `gorm:"not null" json:"connected"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (Account) TableName() string {
	return "accounts"
}

// Complete reports whether the account can be used to open a terminal session.
func (a *Account) Complete() bool {
	return a != nil && a.Login != "" && a.Server != "" && a.PasswordSealed != ""
}
