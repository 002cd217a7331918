package warranties

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/warrantyvault/backend/pkg/db/models"
	"github.com/warrantyvault/backend/pkg/enums"
	pkgpagination "github.com/warrantyvault/backend/pkg/pagination"
)

type ListParams struct {
	OwnerID uuid.UUID
	pkgpagination.Params
}

type ListResult struct {
	Items  []Record `json:"items"`
	Cursor string   `json:"cursor"`
}

// Record is the API-facing shape of a warranty row plus its derived status.
type Record struct {
	ID               uuid.UUID              `json:"id"`
	UserID           uuid.UUID              `json:"user_id"`
	FilePath         string                 `json:"file_path,omitempty"`
	FileName         string                 `json:"file_name,omitempty"`
	MimeType         string                 `json:"mime_type,omitempty"`
	ProductName      *string                `json:"product_name"`
	Brand            *string                `json:"brand"`
	Model            *string                `json:"model"`
	SerialNumber     *string                `json:"serial_number"`
	PurchaseDate     *time.Time             `json:"purchase_date"`
	WarrantyDuration *string                `json:"warranty_duration"`
	ExpiryDate       *time.Time             `json:"expiry_date"`
	ExpirySource     enums.ExpirySource     `json:"expiry_source"`
	DateConflict     bool                   `json:"date_conflict"`
	ProcessingStatus enums.ProcessingStatus `json:"processing_status"`
	AISource         *string                `json:"ai_source,omitempty"`
	RawExtraction    datatypes.JSON         `json:"raw_extraction,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	Status           Status                 `json:"status"`
	SignedURL        string                 `json:"signed_url,omitempty"`
}

type listQuery struct {
	ownerID uuid.UUID
	limit   int
	cursor  *pkgpagination.Cursor
}

func ToRecord(m models.Warranty, now time.Time) Record {
	return Record{
		ID:               m.ID,
		UserID:           m.UserID,
		FilePath:         m.FilePath,
		FileName:         m.FileName,
		MimeType:         m.MimeType,
		ProductName:      m.ProductName,
		Brand:            m.Brand,
		Model:            m.Model,
		SerialNumber:     m.SerialNumber,
		PurchaseDate:     m.PurchaseDate,
		WarrantyDuration: m.WarrantyDuration,
		ExpiryDate:       m.ExpiryDate,
		ExpirySource:     m.ExpirySource,
		DateConflict:     m.DateConflict,
		ProcessingStatus: m.ProcessingStatus,
		AISource:         m.AISource,
		RawExtraction:    m.RawExtraction,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		Status:           ComputeStatus(m.ExpiryDate, now),
	}
}
