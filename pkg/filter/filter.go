// Package filter evaluates independent predicates over the aggregate
// collection and orders the survivors for display. Every predicate defaults
// to "no constraint"; active predicates combine with AND.
package filter

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"customer-retention-audit/pkg/agg"
	"customer-retention-audit/pkg/model"
)

// Query is one filter configuration. The zero value of each field means no
// constraint, so Default() rather than Query{} should be used to construct
// one: the numeric maxima default to +Inf / MaxInt, not zero.
type Query struct {
	Restaurant        string
	Year              int
	AvgSpentMin       float64
	AvgSpentMax       float64
	TotalSpentMin     float64
	TotalSpentMax     float64
	DaysSinceMin      int
	DaysSinceMax      int
	OrderCountMin     int
	OrderCountMax     int
	LostOnly          bool
	ComplaintKeyword  string
	MinComplaintCount int
}

// Default returns a query that matches every aggregate.
func Default() Query {
	return Query{
		AvgSpentMax:   math.Inf(1),
		TotalSpentMax: math.Inf(1),
		DaysSinceMax:  math.MaxInt,
		OrderCountMax: math.MaxInt,
	}
}

// Apply evaluates the query and returns the passing aggregates in
// descending order-count order. The sort is stable: ties keep the relative
// order of the input collection, nothing more is promised. The input slice
// is never mutated, so applying the same query twice yields identical
// output.
func Apply(aggregates []model.CustomerAggregate, complaints []model.ComplaintRecord, q Query) []model.CustomerAggregate {
	keyword := strings.ToLower(strings.TrimSpace(q.ComplaintKeyword))

	var byPhone map[string][]model.ComplaintRecord
	if keyword != "" {
		byPhone = make(map[string][]model.ComplaintRecord, len(complaints))
		for _, complaint := range complaints {
			byPhone[complaint.Phone] = append(byPhone[complaint.Phone], complaint)
		}
	}

	result := make([]model.CustomerAggregate, 0, len(aggregates))
	for _, candidate := range aggregates {
		if !matches(candidate, q, keyword, byPhone) {
			continue
		}
		result = append(result, candidate)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OrderCount > result[j].OrderCount
	})
	return result
}

func matches(c model.CustomerAggregate, q Query, keyword string, byPhone map[string][]model.ComplaintRecord) bool {
	if q.Restaurant != "" && !hasRestaurant(c, q.Restaurant) {
		return false
	}
	if q.Year != 0 && c.LastOrderYear != q.Year {
		return false
	}
	if c.AvgSpent < q.AvgSpentMin || c.AvgSpent > q.AvgSpentMax {
		return false
	}
	if c.TotalSpent < q.TotalSpentMin || c.TotalSpent > q.TotalSpentMax {
		return false
	}
	if c.DaysSinceLastOrder < q.DaysSinceMin || c.DaysSinceLastOrder > q.DaysSinceMax {
		return false
	}
	if c.OrderCount < q.OrderCountMin || c.OrderCount > q.OrderCountMax {
		return false
	}
	if q.LostOnly && c.DaysSinceLastOrder <= agg.LostAfterDays {
		return false
	}
	if keyword != "" && !hasComplaintKeyword(byPhone[c.Phone], keyword) {
		return false
	}
	if c.ComplaintCount < q.MinComplaintCount {
		return false
	}
	return true
}

func hasRestaurant(c model.CustomerAggregate, restaurant string) bool {
	for _, line := range c.Orders {
		if line.Restaurant == restaurant {
			return true
		}
	}
	return false
}

func hasComplaintKeyword(complaints []model.ComplaintRecord, keyword string) bool {
	for _, complaint := range complaints {
		if strings.Contains(strings.ToLower(complaint.Category), keyword) ||
			strings.Contains(strings.ToLower(complaint.Details), keyword) {
			return true
		}
	}
	return false
}

// FloatMin coerces a raw minimum bound; malformed input means no lower
// constraint.
func FloatMin(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return value
}

// FloatMax coerces a raw maximum bound; malformed input means no upper
// constraint.
func FloatMax(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.Inf(1)
	}
	return value
}

// IntMin coerces a raw integer minimum; malformed input means no lower
// constraint.
func IntMin(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}

// IntMax coerces a raw integer maximum; malformed input means no upper
// constraint.
func IntMax(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return math.MaxInt
	}
	return value
}
