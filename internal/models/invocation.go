package models

import "time"

// Invocation sources.
const (
	InvocationSourceDispatch = "dispatch"
	InvocationSourceArena    = "arena"
)

// Invocation is one attempted model call, kept as an audit trail.
type Invocation struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`          // Invocation ID.
	UserID  uint64 `gorm:"not null;index"`                    // Requesting user.
	ModelID string `gorm:"type:varchar(255);not null;index"`  // Canonical "provider:version" id.
	Source  string `gorm:"type:varchar(32);not null;default:''"` // dispatch or arena.
	Failed  bool   `gorm:"not null;default:false"`            // Provider produced no usable output.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}

// TableName overrides the default table name.
func (Invocation) TableName() string {
	return "invocations"
}
