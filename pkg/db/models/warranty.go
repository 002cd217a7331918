package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/warrantyvault/backend/pkg/enums"
)

// Warranty is the persisted warranty record. The live expiry status is never
// stored; it is derived from ExpiryDate at read time.
type Warranty struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`

	// FilePath is the storage key; empty for manual entries. Once set it is
	// never repointed to a different object.
	FilePath string `gorm:"column:file_path"`
	FileName string `gorm:"column:file_name"`
	MimeType string `gorm:"column:mime_type"`

	ProductName      *string    `gorm:"column:product_name"`
	Brand            *string    `gorm:"column:brand"`
	Model            *string    `gorm:"column:model"`
	SerialNumber     *string    `gorm:"column:serial_number"`
	PurchaseDate     *time.Time `gorm:"column:purchase_date;type:date"`
	WarrantyDuration *string    `gorm:"column:warranty_duration"`
	ExpiryDate       *time.Time `gorm:"column:expiry_date;type:date"`

	ExpirySource enums.ExpirySource `gorm:"column:expiry_source;not null;default:none"`
	// DateConflict flags an expiry date earlier than the purchase date. The
	// record is stored anyway; the source document itself may be ambiguous.
	DateConflict bool `gorm:"column:date_conflict;not null;default:false"`

	ProcessingStatus enums.ProcessingStatus `gorm:"column:processing_status;not null;default:pending"`
	AISource         *string                `gorm:"column:ai_source"`
	RawExtraction    datatypes.JSON         `gorm:"column:raw_extraction"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
