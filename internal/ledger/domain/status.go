package domain

import "math"

// Status is the reconciliation state of an order, derived on every read.
type Status string

const (
	StatusUnpaid   Status = "UNPAID"
	StatusPaid     Status = "PAID"
	StatusOverpaid Status = "OVERPAID"
	StatusReturned Status = "RETURNED"
)

// OverpaidTolerance is how far forward collections may exceed the price
// before an order counts as overpaid.
const OverpaidTolerance = 0.1

// amountEpsilon absorbs float noise from summing collection tranches.
const amountEpsilon = 1e-9

// Statuses lists every status in display order.
var Statuses = []Status{StatusPaid, StatusUnpaid, StatusOverpaid, StatusReturned}

// Settlement is the aggregate of an order's collections.
type Settlement struct {
	// CollectedNet is the sum of non-return collected amounts.
	CollectedNet float64
	// ReturnedAmount is the sum of absolute return amounts.
	ReturnedAmount float64
	ForwardCount   int64
	ReturnCount    int64
}

// ClassifyStatus is the only status rule in the ledger. Partial payments are
// PAID: any non-zero forward collection up to price+tolerance settles the order.
func ClassifyStatus(price float64, s Settlement) Status {
	switch {
	case s.ReturnCount > 0 && s.ForwardCount == 0:
		return StatusReturned
	case math.Abs(s.CollectedNet) < amountEpsilon:
		return StatusUnpaid
	case s.CollectedNet-price > OverpaidTolerance+amountEpsilon:
		return StatusOverpaid
	default:
		return StatusPaid
	}
}

// Costs are the deductions of an order.
type Costs struct {
	Cost          float64
	Shipping      float64
	Commission    float64
	Tax           float64
	CollectionFee float64
}

// Total sums every deduction.
func (c Costs) Total() float64 {
	return c.Cost + c.Shipping + c.Commission + c.Tax + c.CollectionFee
}

// NetProfit is the only profit rule in the ledger; every report uses it.
func NetProfit(s Settlement, c Costs) float64 {
	return s.CollectedNet - c.Total() - s.ReturnedAmount
}

// Costs returns the deductions of the order; the order's COD/payment fee is
// its collection fee.
func (o Order) Costs() Costs {
	return Costs{
		Cost:          o.Cost,
		Shipping:      o.Shipping,
		Commission:    o.Commission,
		Tax:           o.Tax,
		CollectionFee: o.CODFee,
	}
}
