package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestOrdersCSVWithExportHeaders(t *testing.T) {
	csvData := "Account Phones,Account Name,Total Price,Created,Resturant,Payment Method\n" +
		" 555-0001 ,Ada,100.50,2024-01-15,Pasta Place,card\n" +
		"555-0002,Ben,not-a-number,15/03/2024,Burger Barn,cash\n" +
		",NoPhone,10,2024-01-01,,\n"

	orders, err := Orders(writeFile(t, "orders.csv", csvData))
	if err != nil {
		t.Fatalf("load orders: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(orders))
	}

	first := orders[0]
	if first.Phone != "555-0001" {
		t.Fatalf("phone not trimmed: %q", first.Phone)
	}
	if first.Amount != 100.50 || first.Restaurant != "Pasta Place" || first.PaymentMethod != "card" {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if !first.OrderDate.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", first.OrderDate)
	}

	second := orders[1]
	if second.Amount != 0 {
		t.Fatalf("bad amount must coerce to 0, got %v", second.Amount)
	}
	if !second.OrderDate.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("slash date parsed wrong: %v", second.OrderDate)
	}

	// Phoneless rows load anyway; the aggregator is the one that skips them.
	if orders[2].Phone != "" {
		t.Fatalf("expected empty phone, got %q", orders[2].Phone)
	}
}

func TestOrdersJSONNumericPhone(t *testing.T) {
	jsonData := `[
		{"Account Phones": 5550001, "Account Name": "Ada", "Total Price": "42.5", "Created": "2024-02-01", "Resturant": "Pasta Place"},
		{"Account Phones": "555-0002", "Total Price": 7, "Created": ""}
	]`

	orders, err := Orders(writeFile(t, "orders.json", jsonData))
	if err != nil {
		t.Fatalf("load orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(orders))
	}
	if orders[0].Phone != "5550001" {
		t.Fatalf("numeric phone mangled: %q", orders[0].Phone)
	}
	if orders[0].Amount != 42.5 || orders[1].Amount != 7 {
		t.Fatalf("amounts: %v %v", orders[0].Amount, orders[1].Amount)
	}
	if !orders[1].OrderDate.IsZero() {
		t.Fatalf("empty date should be unknown, got %v", orders[1].OrderDate)
	}
}

func TestComplaints(t *testing.T) {
	csvData := "phone,category,details\n555-0001,Delivery,Arrived late\n555-0002,,\n"
	complaints, err := Complaints(writeFile(t, "complaints.csv", csvData))
	if err != nil {
		t.Fatalf("load complaints: %v", err)
	}
	if len(complaints) != 2 {
		t.Fatalf("expected 2 complaints, got %d", len(complaints))
	}
	if complaints[0].Category != "Delivery" || complaints[0].Details != "Arrived late" {
		t.Fatalf("unexpected complaint: %+v", complaints[0])
	}
}

func TestComplaintsOptional(t *testing.T) {
	complaints, err := Complaints("")
	if err != nil || complaints != nil {
		t.Fatalf("empty path must be a no-op, got %v %v", complaints, err)
	}
}

func TestMissingPhoneColumnFails(t *testing.T) {
	csvData := "name,total_price,created\nAda,10,2024-01-01\n"
	_, err := Orders(writeFile(t, "orders.csv", csvData))
	if err == nil {
		t.Fatal("expected error for missing phone column")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %T", err)
	}
	if loadErr.Source != "orders" {
		t.Fatalf("unexpected source: %s", loadErr.Source)
	}
}

func TestMissingFileFails(t *testing.T) {
	_, err := Orders(filepath.Join(t.TempDir(), "nope.csv"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if loadErr.Unwrap() == nil {
		t.Fatal("LoadError must carry its cause")
	}
}

func TestMalformedJSONFails(t *testing.T) {
	_, err := Orders(writeFile(t, "orders.json", "{not json"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}
