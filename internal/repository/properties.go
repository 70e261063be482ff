package repository

import (
	"context"

	"medstay/internal/database"
	"medstay/internal/models"
)

type PropertyRepository struct {
	conn
}

func NewPropertyRepository(db *database.DB) *PropertyRepository {
	return &PropertyRepository{conn: conn{db: db}}
}

func (r *PropertyRepository) GetByID(ctx context.Context, id int64) (*models.Property, error) {
	property := &models.Property{}
	query := `
		SELECT id, owner_id, name, base_price, max_guests, created_at, updated_at
		FROM properties
		WHERE id = $1`

	err := database.WithRetry(ctx, "get property", func(ctx context.Context) error {
		return r.q().GetContext(ctx, property, query, id)
	})
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, translate("get property", err)
	}
	return property, nil
}

func (r *PropertyRepository) List(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	query := `
		SELECT id, owner_id, name, base_price, max_guests, created_at, updated_at
		FROM properties
		ORDER BY id`

	if err := r.q().SelectContext(ctx, &properties, query); err != nil {
		return nil, translate("list properties", err)
	}
	return properties, nil
}
