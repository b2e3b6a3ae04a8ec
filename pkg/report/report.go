// Package report assembles the audit output: KPI summary, per-restaurant
// rollup, dropdown facets and the full customer table, with text, JSON and
// alert-CSV renderings.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"customer-retention-audit/pkg/agg"
	"customer-retention-audit/pkg/dateparse"
	"customer-retention-audit/pkg/filter"
	"customer-retention-audit/pkg/model"
)

// RestaurantSummary rolls orders up by restaurant across all customers.
type RestaurantSummary struct {
	Restaurant string  `json:"restaurant"`
	Orders     int     `json:"orders"`
	Revenue    float64 `json:"revenue"`
	Customers  int     `json:"customers"`
}

// Facets are the distinct values offered to the presentation layer for its
// dropdowns: restaurants ascending, last-order years descending.
type Facets struct {
	Restaurants []string `json:"restaurants"`
	Years       []int    `json:"years"`
}

// Report is one full audit run over the unfiltered aggregate collection.
type Report struct {
	AsOf        string                    `json:"as_of"`
	Summary     agg.Summary               `json:"summary"`
	Restaurants []RestaurantSummary       `json:"restaurant_summary"`
	Facets      Facets                    `json:"facets"`
	TopSpenders []model.CustomerAggregate `json:"top_spenders"`
	Customers   []model.CustomerAggregate `json:"customers"`
	InvalidRows int                       `json:"invalid_rows"`
}

// Build runs the whole pipeline over raw records: aggregate, summarize,
// roll up restaurants and facets, and keep the topN biggest spenders for
// the report header. The filtered table view comes separately from
// filter.Apply; Build always reflects the full collection.
func Build(orders []model.OrderRecord, complaints []model.ComplaintRecord, now time.Time, topN int) Report {
	aggregates := agg.Build(orders, complaints, now)

	linked := 0
	for _, a := range aggregates {
		linked += a.OrderCount
	}

	top := make([]model.CustomerAggregate, len(aggregates))
	copy(top, aggregates)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].TotalSpent > top[j].TotalSpent
	})
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}

	return Report{
		AsOf:        dateparse.DateOnly(now).Format("2006-01-02"),
		Summary:     agg.Summarize(aggregates),
		Restaurants: restaurantSummary(aggregates),
		Facets:      buildFacets(aggregates),
		TopSpenders: top,
		Customers:   aggregates,
		InvalidRows: len(orders) - linked,
	}
}

func restaurantSummary(aggregates []model.CustomerAggregate) []RestaurantSummary {
	type bucket struct {
		orders    int
		revenue   float64
		customers map[string]struct{}
	}
	buckets := map[string]*bucket{}
	for _, a := range aggregates {
		for _, line := range a.Orders {
			if line.Restaurant == "" {
				continue
			}
			b, ok := buckets[line.Restaurant]
			if !ok {
				b = &bucket{customers: map[string]struct{}{}}
				buckets[line.Restaurant] = b
			}
			b.orders++
			b.revenue += line.Amount
			b.customers[a.Phone] = struct{}{}
		}
	}

	result := make([]RestaurantSummary, 0, len(buckets))
	for restaurant, b := range buckets {
		result = append(result, RestaurantSummary{
			Restaurant: restaurant,
			Orders:     b.orders,
			Revenue:    b.revenue,
			Customers:  len(b.customers),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Revenue != result[j].Revenue {
			return result[i].Revenue > result[j].Revenue
		}
		return result[i].Restaurant < result[j].Restaurant
	})
	return result
}

func buildFacets(aggregates []model.CustomerAggregate) Facets {
	restaurantSet := map[string]struct{}{}
	yearSet := map[int]struct{}{}
	for _, a := range aggregates {
		for _, line := range a.Orders {
			if line.Restaurant != "" {
				restaurantSet[line.Restaurant] = struct{}{}
			}
		}
		if a.LastOrderYear > 1 {
			yearSet[a.LastOrderYear] = struct{}{}
		}
	}

	facets := Facets{
		Restaurants: make([]string, 0, len(restaurantSet)),
		Years:       make([]int, 0, len(yearSet)),
	}
	for restaurant := range restaurantSet {
		facets.Restaurants = append(facets.Restaurants, restaurant)
	}
	sort.Strings(facets.Restaurants)
	for year := range yearSet {
		facets.Years = append(facets.Years, year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(facets.Years)))
	return facets
}

// Print writes the human-readable report to stdout together with the
// filtered table produced by the active query.
func Print(report Report, filtered []model.CustomerAggregate, inputPath string) {
	fmt.Println("Customer Retention Audit")
	fmt.Println(strings.Repeat("=", 38))
	fmt.Printf("Input: %s\n", filepath.Base(inputPath))
	fmt.Printf("As of: %s\n", report.AsOf)
	fmt.Printf("Customers: %d | Orders: %d\n", report.Summary.TotalCustomers, report.Summary.TotalOrders)
	fmt.Printf("Revenue: %s | Avg order: %s\n", formatAmount(report.Summary.TotalRevenue), formatAmount(report.Summary.AvgOrderValue))
	fmt.Printf("With complaints: %.1f%% | Lost (>%d days): %d\n", report.Summary.ComplaintPct, agg.LostAfterDays, report.Summary.LostCustomers)
	if report.InvalidRows > 0 {
		fmt.Printf("Rows without customer phone: %d\n", report.InvalidRows)
	}

	if len(report.TopSpenders) > 0 {
		fmt.Println("\nTop spenders")
		fmt.Println(strings.Repeat("-", 38))
		for _, entry := range report.TopSpenders {
			fmt.Printf("%s | %s | %d orders | total %s | last %s\n",
				entry.Phone, entry.Name, entry.OrderCount,
				formatAmount(entry.TotalSpent), formatDate(entry.LastOrderDate))
		}
	}

	if len(report.Restaurants) > 0 {
		fmt.Println("\nRestaurant summary")
		fmt.Println(strings.Repeat("-", 38))
		for _, entry := range report.Restaurants {
			fmt.Printf("%s | orders %d | revenue %s | customers %d\n",
				entry.Restaurant, entry.Orders, formatAmount(entry.Revenue), entry.Customers)
		}
	}

	fmt.Printf("\nCustomers matching filters: %d\n", len(filtered))
	fmt.Println(strings.Repeat("-", 38))
	for _, entry := range filtered {
		fmt.Printf("%s | %s | %d orders | total %s | avg %s | last %s | %d days | %s | complaints %d\n",
			entry.Phone, entry.Name, entry.OrderCount,
			formatAmount(entry.TotalSpent), formatAmount(entry.AvgSpent),
			formatDate(entry.LastOrderDate), entry.DaysSinceLastOrder,
			entry.Status, entry.ComplaintCount)
	}
}

// WriteJSON saves the full report for downstream dashboards.
func WriteJSON(report Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// WriteAlertsCSV exports the lost customers, worst recency first, for
// follow-up campaigns.
func WriteAlertsCSV(report Report, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	lost := filter.Apply(report.Customers, nil, lostQuery())
	sort.SliceStable(lost, func(i, j int) bool {
		return lost[i].DaysSinceLastOrder > lost[j].DaysSinceLastOrder
	})

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"phone",
		"name",
		"order_count",
		"total_spent",
		"last_order",
		"days_since_last_order",
		"complaint_count",
	}); err != nil {
		return err
	}
	for _, entry := range lost {
		record := []string{
			entry.Phone,
			entry.Name,
			fmt.Sprintf("%d", entry.OrderCount),
			fmt.Sprintf("%.2f", entry.TotalSpent),
			formatDate(entry.LastOrderDate),
			fmt.Sprintf("%d", entry.DaysSinceLastOrder),
			fmt.Sprintf("%d", entry.ComplaintCount),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func lostQuery() filter.Query {
	q := filter.Default()
	q.LostOnly = true
	return q
}

func formatAmount(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	return fmt.Sprintf("¥%.2f", value)
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return "unknown"
	}
	return value.Format("2006-01-02")
}
