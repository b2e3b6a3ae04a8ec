// Package agg turns flat order rows into per-customer rollups and derives
// the KPI scalars shown on the dashboard summary cards.
package agg

import (
	"math"
	"sort"
	"time"

	"customer-retention-audit/pkg/dateparse"
	"customer-retention-audit/pkg/model"
)

// LostAfterDays is the recency threshold beyond which a customer counts as
// lost. The comparison is strict (> 90): a customer at exactly 90 days is
// not lost.
const LostAfterDays = 90

// WarningAfterDays marks customers drifting toward lost.
const WarningAfterDays = 60

// Build groups orders by trimmed phone and computes one aggregate per
// distinct non-empty phone. Rows without a phone are skipped; they model
// orders with no linkable customer, not errors. The result order follows
// first appearance in the input, so reruns over the same rows are
// deterministic. Build never fails: dirty field values were already coerced
// to defaults at the ingestion boundary.
func Build(orders []model.OrderRecord, complaints []model.ComplaintRecord, now time.Time) []model.CustomerAggregate {
	type bucket struct {
		name  string
		total float64
		lines []model.OrderLine
	}

	buckets := map[string]*bucket{}
	phones := make([]string, 0)

	for _, order := range orders {
		if order.Phone == "" {
			continue
		}
		b, ok := buckets[order.Phone]
		if !ok {
			b = &bucket{}
			buckets[order.Phone] = b
			phones = append(phones, order.Phone)
		}
		if b.name == "" {
			b.name = order.Name
		}
		b.total += order.Amount
		b.lines = append(b.lines, model.OrderLine{
			Date:          order.OrderDate,
			Amount:        order.Amount,
			Restaurant:    order.Restaurant,
			PaymentMethod: order.PaymentMethod,
		})
	}

	complaintsByPhone := CountComplaints(complaints)

	aggregates := make([]model.CustomerAggregate, 0, len(phones))
	for _, phone := range phones {
		b := buckets[phone]

		// Stable so that same-day orders keep input order and the final
		// element stays a well-defined "last order".
		sort.SliceStable(b.lines, func(i, j int) bool {
			return b.lines[i].Date.Before(b.lines[j].Date)
		})

		last := b.lines[len(b.lines)-1].Date
		days := dateparse.DaysBetween(now, last)

		name := b.name
		if name == "" {
			name = model.NamePlaceholder
		}

		aggregates = append(aggregates, model.CustomerAggregate{
			Phone:              phone,
			Name:               name,
			OrderCount:         len(b.lines),
			TotalSpent:         b.total,
			AvgSpent:           b.total / float64(len(b.lines)),
			LastOrderDate:      last,
			DaysSinceLastOrder: days,
			LastOrderYear:      last.Year(),
			ComplaintCount:     complaintsByPhone[phone],
			Status:             Status(days),
			Orders:             b.lines,
		})
	}

	return aggregates
}

// CountComplaints indexes complaint counts by trimmed phone so the join
// stays linear instead of rescanning the complaint list per customer.
func CountComplaints(complaints []model.ComplaintRecord) map[string]int {
	counts := make(map[string]int, len(complaints))
	for _, complaint := range complaints {
		if complaint.Phone == "" {
			continue
		}
		counts[complaint.Phone]++
	}
	return counts
}

// Status maps recency to the badge shown per customer row.
func Status(daysSinceLastOrder int) string {
	switch {
	case daysSinceLastOrder > LostAfterDays:
		return model.StatusInactive
	case daysSinceLastOrder > WarningAfterDays:
		return model.StatusWarning
	default:
		return model.StatusActive
	}
}

// Summary holds the KPI scalars computed over the full, unfiltered
// aggregate collection.
type Summary struct {
	TotalRevenue   float64 `json:"total_revenue"`
	TotalCustomers int     `json:"total_customers"`
	TotalOrders    int     `json:"total_orders"`
	AvgOrderValue  float64 `json:"avg_order_value"`
	ComplaintPct   float64 `json:"complaint_pct"`
	LostCustomers  int     `json:"lost_customers"`
}

// Summarize computes the KPI scalars. Divisions are guarded so an empty
// collection yields zeros rather than NaN.
func Summarize(aggregates []model.CustomerAggregate) Summary {
	summary := Summary{TotalCustomers: len(aggregates)}

	withComplaints := 0
	for _, agg := range aggregates {
		summary.TotalRevenue += agg.TotalSpent
		summary.TotalOrders += agg.OrderCount
		if agg.ComplaintCount > 0 {
			withComplaints++
		}
		if agg.DaysSinceLastOrder > LostAfterDays {
			summary.LostCustomers++
		}
	}
	if summary.TotalOrders > 0 {
		summary.AvgOrderValue = summary.TotalRevenue / float64(summary.TotalOrders)
	}
	if summary.TotalCustomers > 0 {
		summary.ComplaintPct = round1(float64(withComplaints) / float64(summary.TotalCustomers) * 100)
	}
	return summary
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
