package models

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultSeedRating is the Elo rating assigned to a model on first sync.
const DefaultSeedRating = 1000

// ModelRating stores the persistent Elo skill rating for one model.
type ModelRating struct {
	ModelID     string `gorm:"type:varchar(255);primaryKey"` // Canonical "provider:version" id.
	DisplayName string `gorm:"type:varchar(255);not null"`   // Human-readable name.

	Rating int `gorm:"not null;default:1000"` // Elo rating, seeded at 1000.

	Capabilities datatypes.JSON `gorm:"not null;default:'[]'"` // Declared capability tags.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (ModelRating) TableName() string {
	return "model_ratings"
}
