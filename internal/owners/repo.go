package owners

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/warrantyvault/backend/pkg/db/models"
)

// Repository persists owner identities.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an owner repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Ensure inserts the owner row if it does not exist yet. An existing row is
// left untouched so repeated calls are safe.
func (r *Repository) Ensure(ctx context.Context, row *models.User) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
}
