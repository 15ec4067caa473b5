package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrioscamacho/memberfees-backend/pkg/db/models"
)

// Repository reads fee categories. Category CRUD belongs to the catalog
// service; this surface is lookup-only.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.FeeCategory, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FeeCategory, error) {
	var category models.FeeCategory
	if err := r.db.WithContext(ctx).
		Where("id = ? AND active", id).
		First(&category).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}
