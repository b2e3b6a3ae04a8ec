package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"customer-retention-audit/pkg/model"
)

func fixtureOrders() []model.OrderRecord {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return []model.OrderRecord{
		{Phone: "1", Name: "Ada", Amount: 100, OrderDate: day(2024, 4, 1), Restaurant: "A"},
		{Phone: "1", Name: "Ada", Amount: 50, OrderDate: day(2024, 5, 1), Restaurant: "B"},
		{Phone: "2", Name: "Ben", Amount: 200, OrderDate: day(2023, 1, 1), Restaurant: "A"},
		{Phone: "", Amount: 10, OrderDate: day(2024, 1, 1), Restaurant: "A"},
	}
}

var fixtureNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestBuildReport(t *testing.T) {
	report := Build(fixtureOrders(), nil, fixtureNow, 1)

	if report.AsOf != "2024-06-01" {
		t.Fatalf("as of: %s", report.AsOf)
	}
	if report.Summary.TotalCustomers != 2 || report.Summary.TotalOrders != 3 {
		t.Fatalf("summary: %+v", report.Summary)
	}
	if report.InvalidRows != 1 {
		t.Fatalf("phoneless row should count as invalid, got %d", report.InvalidRows)
	}
	if len(report.TopSpenders) != 1 || report.TopSpenders[0].Phone != "2" {
		t.Fatalf("top spender should be customer 2: %v", report.TopSpenders)
	}
	// Customer 2 last ordered 2023-01-01, well past the lost threshold.
	if report.Summary.LostCustomers != 1 {
		t.Fatalf("lost customers: %d", report.Summary.LostCustomers)
	}
}

func TestRestaurantSummary(t *testing.T) {
	report := Build(fixtureOrders(), nil, fixtureNow, 0)
	if len(report.Restaurants) != 2 {
		t.Fatalf("expected 2 restaurants, got %d", len(report.Restaurants))
	}
	top := report.Restaurants[0]
	// Restaurant A: customer 1's 100 plus customer 2's 200; the phoneless
	// row's order never reaches an aggregate.
	if top.Restaurant != "A" || top.Orders != 2 || top.Revenue != 300 || top.Customers != 2 {
		t.Fatalf("restaurant A summary: %+v", top)
	}
}

func TestFacets(t *testing.T) {
	report := Build(fixtureOrders(), nil, fixtureNow, 0)
	if !reflect.DeepEqual(report.Facets.Restaurants, []string{"A", "B"}) {
		t.Fatalf("restaurant facet: %v", report.Facets.Restaurants)
	}
	if !reflect.DeepEqual(report.Facets.Years, []int{2024, 2023}) {
		t.Fatalf("year facet must be descending: %v", report.Facets.Years)
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	report := Build(fixtureOrders(), nil, fixtureNow, 5)
	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteJSON(report, path); err != nil {
		t.Fatalf("write json: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if decoded.Summary.TotalCustomers != report.Summary.TotalCustomers {
		t.Fatalf("round trip lost summary: %+v", decoded.Summary)
	}
}

func TestWriteAlertsCSV(t *testing.T) {
	report := Build(fixtureOrders(), nil, fixtureNow, 0)
	path := filepath.Join(t.TempDir(), "alerts.csv")
	if err := WriteAlertsCSV(report, path); err != nil {
		t.Fatalf("write alerts: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open alerts: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read alerts: %v", err)
	}
	// Header plus the single lost customer.
	if len(records) != 2 {
		t.Fatalf("expected 2 csv rows, got %d", len(records))
	}
	if records[1][0] != "2" {
		t.Fatalf("lost customer should be phone 2, got %s", records[1][0])
	}
}
