package models

import "time"

// Session records where and from which device a user signed in.
type Session struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	IPAddress string    `gorm:"size:64" json:"ipAddress"`
	UserAgent string    `gorm:"size:512" json:"userAgent"`
	Device    string    `gorm:"size:128" json:"device"`
	Metadata  JSON      `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `gorm:"index" json:"expiresAt"`
}
