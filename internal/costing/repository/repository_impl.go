package repository

import (
	"context"
	"time"

	"github.com/railzwaylabs/recon/internal/costing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) UpsertProductCost(ctx context.Context, db *gorm.DB, p *domain.ProductCost) error {
	if p == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO product_costs (sku, product_name, cost, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (sku) DO UPDATE
		 SET cost = excluded.cost,
		     product_name = CASE WHEN excluded.product_name <> '' THEN excluded.product_name ELSE product_costs.product_name END,
		     updated_at = excluded.updated_at`,
		p.SKU,
		p.ProductName,
		p.Cost,
		p.UpdatedAt,
	).Error
}

func (r *repo) FindProductCost(ctx context.Context, db *gorm.DB, sku string) (*domain.ProductCost, error) {
	var p domain.ProductCost
	err := db.WithContext(ctx).Raw(
		`SELECT sku, product_name, cost, updated_at
		 FROM product_costs WHERE sku = ?`,
		sku,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.SKU == "" {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) ListProductCosts(ctx context.Context, db *gorm.DB) ([]domain.ProductCost, error) {
	var items []domain.ProductCost
	err := db.WithContext(ctx).Raw(
		`SELECT sku, product_name, cost, updated_at
		 FROM product_costs
		 ORDER BY sku ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DeleteProductCost(ctx context.Context, db *gorm.DB, sku string) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM product_costs WHERE sku = ?`, sku)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListOrderCostLines(ctx context.Context, db *gorm.DB, snapshotID int64) ([]domain.OrderCostLine, error) {
	var lines []domain.OrderCostLine
	err := db.WithContext(ctx).Raw(
		`SELECT order_id, items_summary, cost
		 FROM orders
		 WHERE snapshot_id = ? AND COALESCE(items_summary, '') <> ''
		 ORDER BY order_id ASC`,
		snapshotID,
	).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) UpdateOrderCost(ctx context.Context, db *gorm.DB, snapshotID int64, orderID string, cost float64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET cost = ?, updated_at = ?
		 WHERE snapshot_id = ? AND order_id = ?`,
		cost,
		at,
		snapshotID,
		orderID,
	).Error
}
