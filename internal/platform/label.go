package platform

// Label identifies one known export format.
type Label string

const (
	NoonOrders         Label = "noon_orders"
	NoonStatement      Label = "noon_statement"
	IlasouqOrders      Label = "ilasouq_orders"
	IlasouqCollections Label = "ilasouq_collections"
	TrendyolStatement  Label = "trendyol_statement"
	TrendyolSales      Label = "trendyol_sales"
	AmazonTransactions Label = "amazon_transactions"
	WebsiteOrders      Label = "website_orders"
	TabbyCollections   Label = "tabby_collections"
	SMSACollections    Label = "smsa_collections"
	ProductCosts       Label = "product_costs"
	Unknown            Label = "unknown"
)

// Platform names stored on orders.
const (
	Noon     = "Noon"
	Ilasouq  = "Ilasouq"
	Trendyol = "Trendyol"
	Amazon   = "Amazon"
	Website  = "Website"
	Tabby    = "Tabby"
	SMSA     = "SMSA"
)

// Labels lists every label in classification order.
var Labels = []Label{
	TabbyCollections,
	SMSACollections,
	NoonStatement,
	NoonOrders,
	TrendyolSales,
	TrendyolStatement,
	AmazonTransactions,
	IlasouqOrders,
	IlasouqCollections,
	WebsiteOrders,
	ProductCosts,
	Unknown,
}

// Platform returns the sales channel a label belongs to.
func (l Label) Platform() string {
	switch l {
	case NoonOrders, NoonStatement:
		return Noon
	case IlasouqOrders, IlasouqCollections:
		return Ilasouq
	case TrendyolStatement, TrendyolSales:
		return Trendyol
	case AmazonTransactions:
		return Amazon
	case WebsiteOrders:
		return Website
	case TabbyCollections:
		return Tabby
	case SMSACollections:
		return SMSA
	}
	return ""
}

// DefaultAccount is used when neither the file name nor the rows name an account.
func (l Label) DefaultAccount() string {
	if p := l.Platform(); p != "" {
		return p + " Account"
	}
	return ""
}

// ReferenceOnly labels are recognised but never ingested.
func (l Label) ReferenceOnly() bool {
	return l == TrendyolSales
}

func (l Label) String() string {
	return string(l)
}
