// Command regenerate_reports backfills weekly KPI reports of one project over a
// range of weeks, for instance after importing historical daily snapshots.
//
//	go run ./cmd/scripts/regenerate_reports -project 3 -year 2025 -from 1 -to 12
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sitesafe/hsekpi/internal/config"
	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/internal/services"
)

func main() {
	projectID := flag.Uint("project", 0, "project ID")
	year := flag.Int("year", 0, "report year")
	from := flag.Int("from", 1, "first week")
	to := flag.Int("to", 0, "last week (defaults to -from)")
	flag.Parse()

	if *projectID == 0 || *year == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *to == 0 {
		*to = *from
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	db, err := models.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	weekly := services.NewWeeklyKpiService(db, services.NewCollector(db), services.NewHolidayService(cfg.KPI.Country))
	ctx := context.Background()

	fmt.Printf("%-6s %-12s %-12s %-10s %-10s %-10s\n", "Week", "Start", "End", "Status", "TF", "TG")
	fmt.Println("--------------------------------------------------------------------")
	var done, skipped int
	for w := *from; w <= *to; w++ {
		report, err := weekly.Generate(ctx, uint(*projectID), w, *year)
		if errors.Is(err, lifecycle.ErrFrozen) {
			fmt.Printf("%-6d approved, left unchanged\n", w)
			skipped++
			continue
		}
		if err != nil {
			log.Fatalf("Week %d: %v", w, err)
		}
		fmt.Printf("%-6d %-12s %-12s %-10s %-10.2f %-10.2f\n", w,
			report.PeriodStart.Format("2006-01-02"), report.PeriodEnd.Format("2006-01-02"),
			report.Status, report.TF, report.TG)
		done++
	}

	fmt.Println("")
	fmt.Printf("Regenerated %d reports, %d approved weeks skipped\n", done, skipped)
}
