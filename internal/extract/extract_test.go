package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/railzwaylabs/recon/internal/costmatch"
	"github.com/railzwaylabs/recon/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var processedAt = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

func fixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func extract(t *testing.T, label platform.Label, name, content string) Result {
	t.Helper()
	e, err := For(label)
	require.NoError(t, err)
	res, err := e.Extract(Source{Path: fixture(t, name, content), Label: label, Now: processedAt})
	require.NoError(t, err)
	return res
}

func TestForCoversEveryLabel(t *testing.T) {
	for _, label := range platform.Labels {
		if label == platform.Unknown {
			continue
		}
		_, err := For(label)
		assert.NoError(t, err, label)
	}
	_, err := For(platform.Unknown)
	assert.ErrorIs(t, err, ErrNoExtractor)
}

func TestNoonOrders(t *testing.T) {
	res := extract(t, platform.NoonOrders, "noon_orders.csv",
		"order_nr,order_received_at,title,quantity,total_price,status\n"+
			"NSA123-X,2024-03-01,Blue Shirt,2,150.5,delivered\n"+
			"\"NSA124,extra\",,Red Cap,,40,shipped\n"+
			",2024-03-01,Ghost,1,10,cancelled\n")

	require.Len(t, res.Orders, 2)
	assert.Equal(t, "NSA123-X", res.Orders[0].OrderID)
	assert.Equal(t, "Noon", res.Orders[0].Platform)
	assert.Equal(t, "Noon Account", res.Orders[0].AccountName)
	assert.Equal(t, "Blue Shirt x2", res.Orders[0].ItemsSummary)
	assert.InDelta(t, 150.5, res.Orders[0].Price, 1e-9)
	require.NotNil(t, res.Orders[0].OrderDate)

	assert.Equal(t, "NSA124", res.Orders[1].OrderID)
	assert.Equal(t, "Red Cap x1", res.Orders[1].ItemsSummary)
	assert.Nil(t, res.Orders[1].OrderDate)

	assert.Equal(t, 3, res.RowsRead)
	assert.Equal(t, map[string]int{SkipMissingOrderID: 1}, res.SkipReasons())
}

func TestNoonStatementSkipsZeroPayments(t *testing.T) {
	res := extract(t, platform.NoonStatement, "noon_statement.csv",
		"order_nr,total_payment,statement_date\n"+
			"NSA123 item,95.25,2024-03-04\n"+
			"NSA124,0,2024-03-04\n")

	require.Len(t, res.Collections, 1)
	assert.Equal(t, "NSA123", res.Collections[0].OrderID)
	assert.InDelta(t, 95.25, res.Collections[0].CollectedAmount, 1e-9)
	assert.Equal(t, 1, res.Skipped())
}

func TestIlasouqOrders(t *testing.T) {
	res := extract(t, platform.IlasouqOrders, "ilasouq_orders.csv",
		"رقم الطلب,تاريخ الطلب,إجمالي الطلب,الضريبة,طريقة الدفع,رسوم الدفع عند الاستلام,تكلفة الشحن,الفرع,skus_json,اسم الكوبون,utm_source\n"+
			"1001,2024-03-01,230,30,,15,25,['Riyadh'],\"[[\"\"Shirt\"\", 2, \"\"SH-1\"\"]]\",,instagram\n")

	require.Len(t, res.Orders, 1)
	o := res.Orders[0]
	assert.Equal(t, "1001", o.OrderID)
	assert.Equal(t, "Riyadh", o.AccountName)
	assert.Equal(t, unknownPaymentMethod, o.PaymentMethod)
	assert.Equal(t, "(SKU: SH-1) Shirt x2", o.ItemsSummary)
	assert.Equal(t, "instagram", o.MarketingSource)
	assert.InDelta(t, 15, o.CODFee, 1e-9)
	assert.InDelta(t, 25, o.Shipping, 1e-9)
	assert.InDelta(t, 30, o.Tax, 1e-9)
	assert.True(t, o.HasShipping)
	assert.True(t, o.HasTax)
	assert.False(t, o.HasCommission)
}

func TestIlasouqCollectionsUseProcessingDate(t *testing.T) {
	res := extract(t, platform.IlasouqCollections, "تحصيل-ilasouq.csv",
		"رقم الطلب,الإجمالي بعد الضريبة\n1001,230\n")

	require.Len(t, res.Collections, 1)
	require.NotNil(t, res.Collections[0].CollectionDate)
	assert.Equal(t, "2024-03-05", res.Collections[0].CollectionDate.Format("2006-01-02"))
}

func TestTrendyolStatement(t *testing.T) {
	res := extract(t, platform.TrendyolStatement, "trendyol_statement.csv",
		"Order Number,Order Date,Transaction Type,Product Name,Quantity,Sales Amount,Commission,Credit\n"+
			"T-1,2024-03-01,Sale,Mug,1,60,6,54\n"+
			"T-1,2024-03-01,Sale,Plate,2,40,4,36\n"+
			"T-2,2024-03-02,Return,Mug,1,60,6,-54\n")

	require.Len(t, res.Orders, 1)
	assert.Equal(t, "T-1", res.Orders[0].OrderID)
	assert.InDelta(t, 100, res.Orders[0].Price, 1e-9)
	assert.Contains(t, res.Orders[0].ItemsSummary, "Plate x2")

	require.Len(t, res.Collections, 3)
	assert.True(t, res.Collections[2].IsReturn)
}

func TestTrendyolSalesIsReferenceOnly(t *testing.T) {
	res := extract(t, platform.TrendyolSales, "trendyol_sales.csv", "Order Number,Amount\nT-1,10\nT-2,20\n")

	assert.Zero(t, res.Records())
	assert.Equal(t, 2, res.RowsRead)
	require.Len(t, res.Notes, 1)
}

func TestTabbyCollections(t *testing.T) {
	preamble := strings.Repeat("Merchant report,summary\n", 10)
	res := extract(t, platform.TabbyCollections, "tabby_march.csv", preamble+
		"Order Number,Order Amount,Total Deduction,Transferred Amount,Transfer Date,Type\n"+
		"5001,100,3.5,96.5,2024-03-04,Payment\n"+
		"5002,40,0,-40,2024-03-04,Refund\n"+
		"5003,80,0,0,2024-03-04,Payment\n")

	require.Len(t, res.Collections, 2)
	assert.Equal(t, "5001", res.Collections[0].OrderID)
	assert.InDelta(t, 3.5, res.Collections[0].CollectionFee, 1e-9)
	assert.InDelta(t, 96.5, res.Collections[0].CollectedAmount, 1e-9)
	assert.False(t, res.Collections[0].IsReturn)
	assert.True(t, res.Collections[1].IsReturn)
	assert.Equal(t, map[string]int{SkipZeroAmount: 1}, res.SkipReasons())
}

func TestSMSACollections(t *testing.T) {
	res := extract(t, platform.SMSACollections, "smsa_cod.csv",
		"SMSA Express,COD report\nAccount,12345\n"+
			"Ref No,COD Amount,COD Charges,Payment Date\n"+
			"290011223344,230,5.75,2024-03-04\n"+
			"290011223355,0,0,2024-03-04\n")

	require.Len(t, res.Collections, 1)
	c := res.Collections[0]
	assert.Equal(t, "290011223344", c.OrderID)
	assert.InDelta(t, 230, c.OriginalAmount, 1e-9)
	assert.InDelta(t, 224.25, c.CollectedAmount, 1e-9)
	assert.Equal(t, 1, res.Skipped())
}

func TestAmazonTransactions(t *testing.T) {
	content := "\"Transaction report\"\n" +
		"\"Generated\",\"2024-03-05\"\n" +
		"التاريخ,نوع المعاملة,رقم الطلب,وصف المنتج,رسوم المنتج,أخرى,رسوم أمازون,الإجمالي\n" +
		"2024-03-01,مبلغ الطلب,=\"404-1234567-1234567\",Order Item - Desk Lamp,100,10,-15,95\n" +
		"2024-03-02,رسوم الشحن,404-1234567-1234567,Shipping,0,0,0,-21.85\n" +
		"2024-03-02,رسوم الخدمة,404-1234567-1234567,Service fee,0,0,0,-3\n" +
		"2024-03-02,مبلغ الطلب,ABC,Lamp,10,0,0,10\n"

	res := extract(t, platform.AmazonTransactions, "amazon_transactions.csv", content)

	require.Len(t, res.Orders, 1)
	o := res.Orders[0]
	assert.Equal(t, "404-1234567-1234567", o.OrderID)
	assert.Equal(t, "Amazon", o.Platform)
	assert.InDelta(t, 110, o.Price, 1e-9)
	assert.InDelta(t, 18, o.Commission, 1e-9)
	assert.InDelta(t, amazonFixedShipping, o.Shipping, 1e-9)
	assert.Equal(t, "Desk Lamp", o.ItemsSummary)

	require.Len(t, res.Collections, 3)
	assert.InDelta(t, -21.85, res.Collections[1].CollectedAmount, 1e-9)
	assert.InDelta(t, 21.85, res.Collections[1].OriginalAmount, 1e-9)
	assert.Equal(t, map[string]int{SkipInvalidOrderID: 1}, res.SkipReasons())
}

func TestAmazonTransactionsWithoutHeader(t *testing.T) {
	e, err := For(platform.AmazonTransactions)
	require.NoError(t, err)
	_, err = e.Extract(Source{Path: fixture(t, "amazon.csv", "a,b\n1,2\n"), Label: platform.AmazonTransactions})
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestWebsiteOrdersProduceCollections(t *testing.T) {
	res := extract(t, platform.WebsiteOrders, "store_orders.csv",
		"Order ID,Order Status,Order Total,Payment Method\n"+
			"W-1,completed,120,\n"+
			"W-2,completed,75,Mada\n")

	require.Len(t, res.Orders, 2)
	require.Len(t, res.Collections, 2)
	assert.Equal(t, websitePaymentMethod, res.Orders[0].PaymentMethod)
	assert.Equal(t, "Mada", res.Orders[1].PaymentMethod)
	require.NotNil(t, res.Orders[0].OrderDate)
	assert.Equal(t, "2024-03-05", res.Orders[0].OrderDate.Format("2006-01-02"))
	assert.InDelta(t, 75, res.Collections[1].CollectedAmount, 1e-9)
}

func TestProductCosts(t *testing.T) {
	res := extract(t, platform.ProductCosts, "product_costs.csv",
		"SKU,Product Name,Unit Cost\n"+
			"SH-1,Shirt,15\n"+
			",Mug,7.5\n"+
			"CP-1,Cap,n/a\n"+
			",,3\n")

	require.Len(t, res.Costs, 2)
	assert.Equal(t, CostRecord{SKU: "SH-1", ProductName: "Shirt", Cost: 15}, res.Costs[0])
	assert.Equal(t, costmatch.AutoSKU("Mug"), res.Costs[1].SKU)
	assert.True(t, costmatch.IsAutoSKU(res.Costs[1].SKU))
	assert.Len(t, res.Costs[1].SKU, len("AUTO-")+8)
	assert.Equal(t, map[string]int{SkipNonNumericAmount: 1, SkipMissingProduct: 1}, res.SkipReasons())
}

func TestProductCostsRequireIdentityColumn(t *testing.T) {
	e, err := For(platform.ProductCosts)
	require.NoError(t, err)
	_, err = e.Extract(Source{Path: fixture(t, "costs.csv", "Cost,Notes\n5,x\n"), Label: platform.ProductCosts})
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestMissingRequiredColumns(t *testing.T) {
	e, err := For(platform.NoonStatement)
	require.NoError(t, err)
	_, err = e.Extract(Source{Path: fixture(t, "noon_statement.csv", "order_nr,notes\nN1,x\n"), Label: platform.NoonStatement})
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestOneBadRowOfTen(t *testing.T) {
	var b strings.Builder
	b.WriteString("order_nr,total_payment,statement_date\n")
	for i := 0; i < 10; i++ {
		amount := "10"
		if i == 4 {
			amount = "ten"
		}
		b.WriteString("NSA" + string(rune('0'+i)) + "," + amount + ",2024-03-04\n")
	}

	res := extract(t, platform.NoonStatement, "noon_statement.csv", b.String())

	assert.Equal(t, 10, res.RowsRead)
	assert.Len(t, res.Collections, 9)
	assert.Equal(t, 1, res.Skipped())
	assert.Equal(t, "non_numeric_amount=1", res.SkipSummary())

	require.Len(t, res.Rows, 10)
	for i, row := range res.Rows {
		assert.Equal(t, i+1, row.Row)
		if i == 4 {
			assert.Equal(t, RowResult{Row: 5, Status: RowSkipped, Reason: SkipNonNumericAmount}, row)
			continue
		}
		assert.Equal(t, RowOK, row.Status)
		assert.Empty(t, row.Reason)
	}
}
