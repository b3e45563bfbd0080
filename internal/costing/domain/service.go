package domain

import (
	"context"
	"errors"
)

type Service interface {
	ListCosts(ctx context.Context) ([]ProductCost, error)
	// SetCost stores one cost and schedules a recalculation of the active
	// snapshot.
	SetCost(ctx context.Context, req SetCostRequest) (*ProductCost, error)
	// SetCosts stores a batch of costs, skipping invalid entries, and
	// schedules one recalculation.
	SetCosts(ctx context.Context, reqs []SetCostRequest) (BulkResult, error)
	DeleteCost(ctx context.Context, sku string) error

	// Recalculate re-costs every order of a snapshot from the cost table.
	// Orders whose items match nothing keep their stored cost.
	Recalculate(ctx context.Context, snapshotID int64) (RecalcReport, error)
	// RecalculateActive runs Recalculate on the active snapshot.
	RecalculateActive(ctx context.Context) (RecalcReport, error)
	// TriggerRecalculation runs Recalculate in the background. A trigger
	// while a run is in flight for the same snapshot queues one more run.
	TriggerRecalculation(snapshotID int64)
	// Wait blocks until background recalculations finish.
	Wait()
}

var (
	ErrInvalidSKU       = errors.New("invalid_sku")
	ErrNegativeCost     = errors.New("negative_cost")
	ErrCostNotFound     = errors.New("product_cost_not_found")
	ErrRecalcInProgress = errors.New("recalculation_in_progress")
)

type SetCostRequest struct {
	SKU         string  `json:"sku"`
	ProductName string  `json:"product_name"`
	Cost        float64 `json:"cost"`
}

type BulkResult struct {
	Saved    int `json:"saved"`
	Rejected int `json:"rejected"`
}

// RecalcReport describes one recalculation run.
type RecalcReport struct {
	SnapshotID    int64 `json:"snapshot_id"`
	Products      int   `json:"products"`
	OrdersScanned int   `json:"orders_scanned"`
	OrdersUpdated int   `json:"orders_updated"`
	ItemsChecked  int   `json:"items_checked"`
	ItemsMatched  int   `json:"items_matched"`
}
