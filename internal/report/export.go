// Package report renders ledger report rows for spreadsheets.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gosimple/slug"
	"github.com/railzwaylabs/recon/internal/ledger/domain"
)

// Header is the column order of the CSV export.
var Header = []string{
	"order_id",
	"platform",
	"account_name",
	"country",
	"order_date",
	"week_number",
	"expected_amount",
	"collected_amount",
	"returned_amount",
	"difference",
	"cost",
	"shipping",
	"commission",
	"tax",
	"collection_fee",
	"net_profit",
	"status",
	"transaction_count",
	"items_summary",
	"payment_method",
	"upstream_status",
	"tracking_number",
	"city",
	"shipping_company",
}

// WriteCSV writes rows with a header line. Amounts use two decimals.
func WriteCSV(w io.Writer, rows []domain.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(r domain.ReportRow) []string {
	date := ""
	if r.OrderDate != nil {
		date = r.OrderDate.Format("2006-01-02")
	}
	return []string{
		r.OrderID,
		r.Platform,
		r.AccountName,
		r.Country,
		date,
		strconv.Itoa(r.WeekNumber),
		money(r.Expected),
		money(r.Collected),
		money(r.Returned),
		money(r.Difference),
		money(r.Cost),
		money(r.Shipping),
		money(r.Commission),
		money(r.Tax),
		money(r.CollectionFee),
		money(r.NetProfit),
		string(r.Status),
		strconv.FormatInt(r.Transactions, 10),
		r.ItemsSummary,
		r.PaymentMethod,
		r.UpstreamStatus,
		r.TrackingNumber,
		r.City,
		r.ShippingCompany,
	}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FileName names an export after its snapshot, e.g.
// "recon-week-10-2024-20240305.csv".
func FileName(snap domain.Snapshot, at time.Time) string {
	label := slug.Make(snap.Label)
	if label == "" {
		label = fmt.Sprintf("snapshot-%d", snap.ID)
	}
	return fmt.Sprintf("recon-%s-%s.csv", label, at.Format("20060102"))
}
