package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"radbot-core/internal/reporting"
	"radbot-core/internal/stats"
	"radbot-core/internal/storage"
	"radbot-core/internal/storage/sqlite"
)

func main() {
	// Parse flags (env vars as defaults)
	dbPath := flag.String("db", os.Getenv("RADBOT_DB"), "Path to the SQLite database")
	wallet := flag.String("wallet", "", "Wallet address to report on")
	days := flag.Int("days", 30, "Daily window in calendar days")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	flag.Parse()

	ctx := context.Background()

	// Validate flags
	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --db is required (or set RADBOT_DB)")
		os.Exit(1)
	}
	if *wallet == "" {
		fmt.Fprintln(os.Stderr, "Error: --wallet is required")
		os.Exit(1)
	}
	if *days < 1 {
		fmt.Fprintln(os.Stderr, "Error: --days must be at least 1")
		os.Exit(1)
	}

	db, err := sqlite.Open(*dbPath, storage.DefaultRetryPolicy())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.SQL.Close()

	aggregator := stats.NewAggregator(
		sqlite.NewStatisticsStore(db),
		sqlite.NewDailyStatisticsStore(db),
		*days,
		nil,
	)
	generator := reporting.NewGenerator(sqlite.NewWalletDirectory(db), aggregator, sqlite.NewHistoryStore(db))

	report, err := generator.Generate(ctx, *wallet, *days)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	mdPath := filepath.Join(*outputDir, "WALLET_REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", mdPath, err)
		os.Exit(1)
	}

	csvPath := filepath.Join(*outputDir, "DAILY_STATS.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderDailyCSV(report.Daily)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", csvPath, err)
		os.Exit(1)
	}

	fmt.Println("Wallet report generated successfully:")
	fmt.Printf("  - %s\n", mdPath)
	fmt.Printf("  - %s\n", csvPath)
}
