package models

import "time"

// User holds the per-user daily request budget. Rows are created lazily on
// first interaction and never deleted.
type User struct {
	ID uint64 `gorm:"primaryKey"` // External user identifier.

	QuotaLimit int `gorm:"not null;default:0"` // Daily request budget.
	QuotaUsed  int `gorm:"not null;default:0"` // Requests consumed today.

	// LastResetDate is the calendar date ("2006-01-02") the counter was last
	// reset. The reset is applied lazily on access, never by a background job.
	LastResetDate string `gorm:"type:varchar(10);not null"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
