// Package loader reads order and complaint records from CSV or JSON files
// and coerces every raw field exactly once, so nothing downstream re-parses
// untyped values. Field defaults: amount 0, date unknown, name empty. A row
// without a phone still loads; the aggregator skips it as a defined
// non-error condition.
//
// An unreadable file, undecodable payload or missing phone column is the
// only failure this package surfaces, as a LoadError.
package loader

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"customer-retention-audit/pkg/dateparse"
	"customer-retention-audit/pkg/model"
)

// LoadError is the structured failure reported for an unusable source. The
// core performs no retry; callers decide what to do with it.
type LoadError struct {
	Source string
	Cause  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Column aliases, matched after lowercasing and stripping separators. The
// "resturant" spelling is how the upstream export actually names the
// column.
var (
	phoneColumns      = []string{"phone", "account_phones", "customer_phone", "phone_number", "customer_id"}
	nameColumns       = []string{"name", "account_name", "customer_name"}
	amountColumns     = []string{"amount", "total_price", "total", "price"}
	dateColumns       = []string{"date", "created", "order_date", "created_at"}
	restaurantColumns = []string{"restaurant", "resturant"}
	paymentColumns    = []string{"payment_method", "payment"}
	categoryColumns   = []string{"category", "type", "complaint_category"}
	detailsColumns    = []string{"details", "description", "comment"}
)

// Orders loads order records from a .csv or .json file.
func Orders(path string) ([]model.OrderRecord, error) {
	var (
		orders []model.OrderRecord
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = readJSON(path, "orders", func(row map[string]string) {
			orders = append(orders, orderFromRow(row))
		})
	default:
		err = readCSV(path, "orders", phoneColumns, func(row map[string]string) {
			orders = append(orders, orderFromRow(row))
		})
	}
	if err != nil {
		return nil, err
	}
	log.Info().Int("rows", len(orders)).Str("path", path).Msg("orders loaded")
	return orders, nil
}

// Complaints loads complaint records. An empty path yields an empty
// collection: complaints are optional input and their absence just means
// zero complaint counts everywhere.
func Complaints(path string) ([]model.ComplaintRecord, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	var (
		complaints []model.ComplaintRecord
		err        error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = readJSON(path, "complaints", func(row map[string]string) {
			complaints = append(complaints, complaintFromRow(row))
		})
	default:
		err = readCSV(path, "complaints", phoneColumns, func(row map[string]string) {
			complaints = append(complaints, complaintFromRow(row))
		})
	}
	if err != nil {
		return nil, err
	}
	log.Info().Int("rows", len(complaints)).Str("path", path).Msg("complaints loaded")
	return complaints, nil
}

func orderFromRow(row map[string]string) model.OrderRecord {
	return model.OrderRecord{
		Phone:         strings.TrimSpace(lookup(row, phoneColumns)),
		Name:          lookup(row, nameColumns),
		Amount:        coerceAmount(lookup(row, amountColumns)),
		OrderDate:     dateparse.Parse(lookup(row, dateColumns)),
		Restaurant:    lookup(row, restaurantColumns),
		PaymentMethod: lookup(row, paymentColumns),
	}
}

func complaintFromRow(row map[string]string) model.ComplaintRecord {
	return model.ComplaintRecord{
		Phone:    strings.TrimSpace(lookup(row, phoneColumns)),
		Category: lookup(row, categoryColumns),
		Details:  lookup(row, detailsColumns),
	}
}

func readCSV(path, source string, required []string, emit func(map[string]string)) error {
	file, size, err := openWithSize(path, source)
	if err != nil {
		return err
	}
	defer file.Close()

	bar := progressbar.DefaultBytes(size, "loading "+source)
	reader := csv.NewReader(io.TeeReader(file, bar))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return &LoadError{Source: source, Cause: fmt.Errorf("unable to read header: %w", err)}
	}
	colMap := normalizeHeaders(headers)
	if _, ok := findColumn(colMap, required); !ok {
		return &LoadError{Source: source, Cause: fmt.Errorf("missing %s column", required[0])}
	}

	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return &LoadError{Source: source, Cause: fmt.Errorf("unable to read CSV: %w", err)}
		}
		if len(record) == 0 {
			continue
		}
		row := make(map[string]string, len(colMap))
		for header, idx := range colMap {
			row[header] = getValue(record, idx)
		}
		emit(row)
	}
	_ = bar.Finish()
	return nil
}

func readJSON(path, source string, emit func(map[string]string)) error {
	file, size, err := openWithSize(path, source)
	if err != nil {
		return err
	}
	defer file.Close()

	bar := progressbar.DefaultBytes(size, "loading "+source)
	decoder := json.NewDecoder(io.TeeReader(file, bar))

	var rows []map[string]any
	if err := decoder.Decode(&rows); err != nil {
		return &LoadError{Source: source, Cause: fmt.Errorf("undecodable JSON: %w", err)}
	}
	for _, raw := range rows {
		row := make(map[string]string, len(raw))
		for key, value := range raw {
			row[normalizeHeader(key)] = stringValue(value)
		}
		emit(row)
	}
	_ = bar.Finish()
	return nil
}

func openWithSize(path, source string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, &LoadError{Source: source, Cause: err}
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, &LoadError{Source: source, Cause: err}
	}
	return file, info.Size(), nil
}

func coerceAmount(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Debug().Str("value", raw).Msg("non-numeric amount, coerced to 0")
		return 0
	}
	return value
}

// stringValue renders a JSON scalar as its source text. Numeric phones come
// in as float64 and must not grow a decimal point or exponent.
func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func lookup(row map[string]string, names []string) string {
	for _, name := range names {
		if value, ok := row[normalizeHeader(name)]; ok && value != "" {
			return value
		}
	}
	return ""
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}
	return result
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}

func findColumn(headers map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if idx, ok := headers[normalizeHeader(name)]; ok {
			return idx, true
		}
	}
	return -1, false
}

func getValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
