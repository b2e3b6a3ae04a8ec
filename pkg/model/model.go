// Package model holds the record shapes shared by the loader, aggregator,
// filter engine and report layer. Records are treated as immutable after
// ingestion; the aggregate collection is rebuilt from scratch on every run.
package model

import "time"

// NamePlaceholder is shown for customers whose orders never carried a name.
const NamePlaceholder = "—"

// Customer status values derived from days since the last order.
const (
	StatusActive   = "active"
	StatusWarning  = "warning"
	StatusInactive = "inactive"
)

// OrderRecord is one raw order row after boundary coercion: the phone is
// trimmed, the amount defaults to 0 and the date to the zero time when the
// source value could not be parsed.
type OrderRecord struct {
	Phone         string    `json:"phone"`
	Name          string    `json:"name"`
	Amount        float64   `json:"amount"`
	OrderDate     time.Time `json:"order_date"`
	Restaurant    string    `json:"restaurant"`
	PaymentMethod string    `json:"payment_method"`
}

// ComplaintRecord is one raw complaint row. Category and Details may be empty.
type ComplaintRecord struct {
	Phone    string `json:"phone"`
	Category string `json:"category"`
	Details  string `json:"details"`
}

// OrderLine is a single order as it appears inside a customer aggregate,
// kept in ascending date order.
type OrderLine struct {
	Date          time.Time `json:"date"`
	Amount        float64   `json:"amount"`
	Restaurant    string    `json:"restaurant"`
	PaymentMethod string    `json:"payment_method"`
}

// CustomerAggregate is the per-customer rollup. One exists for every
// distinct non-empty phone in the input, and only for those; TotalSpent and
// OrderCount always agree with the Orders slice.
type CustomerAggregate struct {
	Phone              string      `json:"phone"`
	Name               string      `json:"name"`
	OrderCount         int         `json:"order_count"`
	TotalSpent         float64     `json:"total_spent"`
	AvgSpent           float64     `json:"avg_spent"`
	LastOrderDate      time.Time   `json:"last_order_date"`
	DaysSinceLastOrder int         `json:"days_since_last_order"`
	LastOrderYear      int         `json:"last_order_year"`
	ComplaintCount     int         `json:"complaint_count"`
	Status             string      `json:"status"`
	Orders             []OrderLine `json:"orders,omitempty"`
}
