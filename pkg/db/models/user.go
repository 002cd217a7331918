package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity. Credential handling lives in
// the external identity service; this table only anchors ownership. Rows are
// provisioned lazily the first time a token for the id is seen, so email may
// be absent.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     *string   `gorm:"type:text;uniqueIndex"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
