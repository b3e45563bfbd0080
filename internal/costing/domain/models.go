package domain

import "time"

// ProductCost is the unit cost of one product.
type ProductCost struct {
	SKU         string    `gorm:"column:sku;primaryKey;type:text" json:"sku"`
	ProductName string    `gorm:"type:text" json:"product_name"`
	Cost        float64   `gorm:"not null;default:0" json:"cost"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (ProductCost) TableName() string { return "product_costs" }

// OrderCostLine is the slice of an order the recalculator reads.
type OrderCostLine struct {
	OrderID      string
	ItemsSummary string
	Cost         float64
}
