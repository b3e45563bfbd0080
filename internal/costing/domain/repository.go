package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// UpsertProductCost replaces the cost of a SKU. A blank name keeps the
	// stored one.
	UpsertProductCost(ctx context.Context, db *gorm.DB, p *ProductCost) error
	FindProductCost(ctx context.Context, db *gorm.DB, sku string) (*ProductCost, error)
	ListProductCosts(ctx context.Context, db *gorm.DB) ([]ProductCost, error)
	DeleteProductCost(ctx context.Context, db *gorm.DB, sku string) (bool, error)

	ListOrderCostLines(ctx context.Context, db *gorm.DB, snapshotID int64) ([]OrderCostLine, error)
	UpdateOrderCost(ctx context.Context, db *gorm.DB, snapshotID int64, orderID string, cost float64, at time.Time) error
}
