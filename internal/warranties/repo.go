package warranties

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/warrantyvault/backend/pkg/db/models"
)

// Repository exposes warranty persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a warranty repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new warranty row.
func (r *Repository) Create(ctx context.Context, record *models.Warranty) (*models.Warranty, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindByID returns the owner's record or gorm.ErrRecordNotFound. A record
// owned by someone else is indistinguishable from a missing one.
func (r *Repository) FindByID(ctx context.Context, id, ownerID uuid.UUID) (*models.Warranty, error) {
	var row models.Warranty
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns owner-scoped warranties using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Warranty, error) {
	query := r.db.WithContext(ctx).Model(&models.Warranty{}).Where("user_id = ?", opts.ownerID)

	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Warranty
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update persists the full record.
func (r *Repository) Update(ctx context.Context, record *models.Warranty) (*models.Warranty, error) {
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes the owner's record; missing rows report gorm.ErrRecordNotFound.
func (r *Repository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&models.Warranty{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
