// Package store persists audit runs to Postgres. Each run inserts one row
// in audit_runs plus its customer rollups and restaurant summary, all in a
// single transaction keyed by a generated run id.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"customer-retention-audit/pkg/report"
)

const connectTimeout = 12 * time.Second

// Config carries the database settings for one run.
type Config struct {
	URL    string
	Schema string
	Tag    string
}

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SanitizeSchema validates the schema identifier before it is interpolated
// into DDL and insert statements.
func SanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	if !schemaPattern.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

// Store writes the report as a new audit run and returns its id.
func Store(ctx context.Context, rep report.Report, cfg Config) (string, error) {
	schema, db, err := connect(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer db.Close()

	return storeReportTx(ctx, db, rep, schema, cfg.Tag)
}

// Seed stores the report only when no audit run exists yet. It returns an
// empty id when data was already present and nothing was inserted.
func Seed(ctx context.Context, rep report.Report, cfg Config) (string, error) {
	schema, db, err := connect(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var count int
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s.audit_runs`, schema)).Scan(&count); err != nil {
		return "", err
	}
	if count > 0 {
		log.Info().Msg("audit data already present, skipping seed")
		return "", nil
	}

	return storeReportTx(ctx, db, rep, schema, cfg.Tag)
}

func connect(ctx context.Context, cfg Config) (string, *sql.DB, error) {
	schema, err := SanitizeSchema(cfg.Schema)
	if err != nil {
		return "", nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return "", nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return "", nil, err
	}
	if err := ensureSchema(ctx, db, schema); err != nil {
		db.Close()
		return "", nil, err
	}
	return schema, db, nil
}

func storeReportTx(ctx context.Context, db *sql.DB, rep report.Report, schema string, tag string) (string, error) {
	runID := uuid.New()
	asOf, err := time.Parse("2006-01-02", rep.AsOf)
	if err != nil {
		return "", fmt.Errorf("bad as-of date %q: %w", rep.AsOf, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.audit_runs (
			id, as_of, total_customers, total_orders, total_revenue,
			avg_order_value, complaint_pct, lost_customers, invalid_rows, run_tag
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,$9,$10
		)`, schema),
		runID,
		asOf,
		rep.Summary.TotalCustomers,
		rep.Summary.TotalOrders,
		rep.Summary.TotalRevenue,
		rep.Summary.AvgOrderValue,
		rep.Summary.ComplaintPct,
		rep.Summary.LostCustomers,
		rep.InvalidRows,
		nullString(tag),
	)
	if err != nil {
		return "", err
	}

	insertCustomerSQL := fmt.Sprintf(`
		INSERT INTO %s.audit_customers (
			id, run_id, phone, name, order_count, total_spent, avg_spent,
			last_order, days_since_last_order, last_order_year,
			complaint_count, status
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,
			$8,$9,$10,
			$11,$12
		)`, schema)

	for _, entry := range rep.Customers {
		_, err = tx.ExecContext(ctx, insertCustomerSQL,
			uuid.New(),
			runID,
			entry.Phone,
			nullString(entry.Name),
			entry.OrderCount,
			entry.TotalSpent,
			entry.AvgSpent,
			nullDate(entry.LastOrderDate),
			entry.DaysSinceLastOrder,
			nullYear(entry.LastOrderYear),
			entry.ComplaintCount,
			entry.Status,
		)
		if err != nil {
			return "", err
		}
	}

	insertRestaurantSQL := fmt.Sprintf(`
		INSERT INTO %s.audit_restaurant_summary (
			id, run_id, restaurant, orders, revenue, customers
		) VALUES (
			$1,$2,$3,$4,$5,$6
		)`, schema)

	for _, entry := range rep.Restaurants {
		_, err = tx.ExecContext(ctx, insertRestaurantSQL,
			uuid.New(),
			runID,
			entry.Restaurant,
			entry.Orders,
			entry.Revenue,
			entry.Customers,
		)
		if err != nil {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return runID.String(), nil
}

func ensureSchema(ctx context.Context, db *sql.DB, schema string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.audit_runs (
			id uuid PRIMARY KEY,
			as_of date NOT NULL,
			total_customers integer NOT NULL,
			total_orders integer NOT NULL,
			total_revenue numeric(14,2) NOT NULL,
			avg_order_value numeric(14,2) NOT NULL,
			complaint_pct numeric(5,1) NOT NULL,
			lost_customers integer NOT NULL,
			invalid_rows integer NOT NULL,
			run_tag text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.audit_customers (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.audit_runs(id) ON DELETE CASCADE,
			phone text NOT NULL,
			name text,
			order_count integer NOT NULL,
			total_spent numeric(14,2) NOT NULL,
			avg_spent numeric(14,2) NOT NULL,
			last_order date,
			days_since_last_order integer NOT NULL,
			last_order_year integer,
			complaint_count integer NOT NULL,
			status text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.audit_restaurant_summary (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.audit_runs(id) ON DELETE CASCADE,
			restaurant text NOT NULL,
			orders integer NOT NULL,
			revenue numeric(14,2) NOT NULL,
			customers integer NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_audit_customers_run_idx ON %s.audit_customers (run_id)`, schema, schema))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_audit_customers_status_idx ON %s.audit_customers (status)`, schema, schema))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_audit_restaurant_summary_run_idx ON %s.audit_restaurant_summary (run_id)`, schema, schema))
	return err
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullDate(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}

func nullYear(value int) sql.NullInt64 {
	if value <= 1 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(value), Valid: true}
}
