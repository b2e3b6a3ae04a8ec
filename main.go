package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"customer-retention-audit/pkg/config"
	"customer-retention-audit/pkg/dateparse"
	"customer-retention-audit/pkg/filter"
	"customer-retention-audit/pkg/loader"
	"customer-retention-audit/pkg/logging"
	"customer-retention-audit/pkg/report"
	"customer-retention-audit/pkg/store"
)

func main() {
	ordersPath := flag.String("orders", "", "Path to orders CSV or JSON")
	complaintsPath := flag.String("complaints", "", "Optional path to complaints CSV or JSON")
	asOf := flag.String("as-of", "", "Reference date (YYYY-MM-DD); defaults to today")
	topN := flag.Int("top", 0, "Top N spenders to show; 0 uses the configured default")

	restaurant := flag.String("restaurant", "", "Only customers with an order at this restaurant")
	year := flag.Int("year", 0, "Only customers whose last order is in this year")
	avgMin := flag.String("avg-min", "", "Minimum average spent")
	avgMax := flag.String("avg-max", "", "Maximum average spent")
	totalMin := flag.String("total-min", "", "Minimum total spent")
	totalMax := flag.String("total-max", "", "Maximum total spent")
	daysMin := flag.String("days-min", "", "Minimum days since last order")
	daysMax := flag.String("days-max", "", "Maximum days since last order")
	ordersMin := flag.String("orders-min", "", "Minimum order count")
	ordersMax := flag.String("orders-max", "", "Maximum order count")
	lostOnly := flag.Bool("lost-only", false, "Only lost customers (last order more than 90 days ago)")
	keyword := flag.String("complaint-keyword", "", "Substring to match in complaint category or details")
	complaintsMin := flag.String("complaints-min", "", "Minimum complaint count")

	jsonOut := flag.String("json", "", "Optional JSON report output path")
	alertsOut := flag.String("alerts", "", "Optional CSV output of lost customers")
	dbEnabled := flag.Bool("db", false, "Store audit run in Postgres (requires CUSTOMER_AUDIT_DB_URL or DATABASE_URL)")
	dbSchema := flag.String("db-schema", "", "Postgres schema for audit tables; overrides config")
	dbTag := flag.String("db-tag", "", "Optional label for this audit run")
	initDB := flag.Bool("init-db", false, "Initialize database schema and seed with this run if empty")
	configPath := flag.String("config", "", "Optional JSON config file")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		exitWithError(err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if *ordersPath == "" {
		exitWithError(errors.New("--orders is required"))
	}
	if *topN > 0 {
		cfg.TopN = *topN
	}
	if *dbSchema != "" {
		cfg.DBSchema = *dbSchema
	}

	// "Now" is captured once and held fixed for the whole run.
	now, err := referenceNow(*asOf)
	if err != nil {
		exitWithError(err)
	}

	started := time.Now()
	orders, err := loader.Orders(*ordersPath)
	if err != nil {
		exitWithError(err)
	}
	complaints, err := loader.Complaints(*complaintsPath)
	if err != nil {
		exitWithError(err)
	}

	rep := report.Build(orders, complaints, now, cfg.TopN)
	filtered := filter.Apply(rep.Customers, complaints, queryFromFlags(
		*restaurant, *year,
		*avgMin, *avgMax, *totalMin, *totalMax,
		*daysMin, *daysMax, *ordersMin, *ordersMax,
		*lostOnly, *keyword, *complaintsMin,
	))
	log.Debug().
		Int("customers", rep.Summary.TotalCustomers).
		Int("matching", len(filtered)).
		Dur("elapsed", time.Since(started)).
		Msg("audit computed")

	report.Print(rep, filtered, *ordersPath)

	if *jsonOut != "" {
		if err := report.WriteJSON(rep, *jsonOut); err != nil {
			exitWithError(err)
		}
		fmt.Printf("\nJSON report saved to %s\n", *jsonOut)
	}
	if *alertsOut != "" {
		if err := report.WriteAlertsCSV(rep, *alertsOut); err != nil {
			exitWithError(err)
		}
		fmt.Printf("Alert CSV saved to %s\n", *alertsOut)
	}

	if *dbEnabled || *initDB {
		dbURL := cfg.DBURL
		if dbURL == "" {
			dbURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		}
		if dbURL == "" {
			exitWithError(errors.New("database URL missing; set CUSTOMER_AUDIT_DB_URL or DATABASE_URL"))
		}
		storeCfg := store.Config{
			URL:    dbURL,
			Schema: cfg.DBSchema,
			Tag:    *dbTag,
		}
		ctx := context.Background()
		seeded := false
		if *initDB {
			runID, err := store.Seed(ctx, rep, storeCfg)
			if err != nil {
				exitWithError(err)
			}
			if runID != "" {
				seeded = true
				fmt.Printf("\nSeeded Postgres with initial audit run (run_id=%s)\n", runID)
			}
		}
		if *dbEnabled {
			if seeded {
				fmt.Println("Skipped duplicate insert; current report already used for seed.")
			} else {
				runID, err := store.Store(ctx, rep, storeCfg)
				if err != nil {
					exitWithError(err)
				}
				fmt.Printf("\nStored audit run in Postgres (run_id=%s)\n", runID)
			}
		}
	}
}

// referenceNow resolves the fixed reference instant for the run. The
// default is today in UTC, so day differences line up with the UTC-midnight
// order dates instead of losing a fractional day to the local zone.
func referenceNow(asOf string) (time.Time, error) {
	asOf = strings.TrimSpace(asOf)
	if asOf == "" {
		return dateparse.DateOnly(time.Now().UTC()), nil
	}
	parsed, err := time.Parse("2006-01-02", asOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of date: %w", err)
	}
	return dateparse.DateOnly(parsed), nil
}

// queryFromFlags centralizes bound coercion: malformed numeric input leaves
// that bound unconstrained.
func queryFromFlags(
	restaurant string, year int,
	avgMin, avgMax, totalMin, totalMax string,
	daysMin, daysMax, ordersMin, ordersMax string,
	lostOnly bool, keyword, complaintsMin string,
) filter.Query {
	q := filter.Default()
	q.Restaurant = restaurant
	q.Year = year
	q.AvgSpentMin = filter.FloatMin(avgMin)
	q.AvgSpentMax = filter.FloatMax(avgMax)
	q.TotalSpentMin = filter.FloatMin(totalMin)
	q.TotalSpentMax = filter.FloatMax(totalMax)
	q.DaysSinceMin = filter.IntMin(daysMin)
	q.DaysSinceMax = filter.IntMax(daysMax)
	q.OrderCountMin = filter.IntMin(ordersMin)
	q.OrderCountMax = filter.IntMax(ordersMax)
	q.LostOnly = lostOnly
	q.ComplaintKeyword = keyword
	q.MinComplaintCount = filter.IntMin(complaintsMin)
	return q
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
