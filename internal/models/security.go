package models

import "time"

// BannedIP is the table-backed form of the ban map {ip: expiryMillis}.
type BannedIP struct {
	IPAddress       string `gorm:"primaryKey;size:64"`
	ExpiresAtMillis int64  `gorm:"index;not null"`
	Reason          string `gorm:"size:255"`
	UpdatedAt       time.Time
}

func (BannedIP) TableName() string { return "banned_ips" }

// AbuseEvent mirrors one abuse log line for dashboards.
type AbuseEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}
