// Command import-shelters loads shelters from a CSV file or URL into the
// database, updating rows that match on name, address and coordinates.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-shelter-alerts/internal/config"
	"github.com/mr1hm/go-shelter-alerts/internal/ingestion"
	"github.com/mr1hm/go-shelter-alerts/internal/logging"
	"github.com/mr1hm/go-shelter-alerts/internal/repository"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "validate the file without writing to the database")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: import-shelters [-dry-run] <file.csv|url>")
		os.Exit(2)
	}
	location := flag.Arg(0)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	importer := ingestion.NewImporter(db, clockwork.NewRealClock(), slog.Default())
	sum, err := importer.Import(ctx, location, *dryRun)
	if err != nil {
		logging.Fatalf("Import failed: %v", err)
	}

	fmt.Printf("import summary for %s\n", location)
	fmt.Printf("  created:   %d\n", sum.Created)
	fmt.Printf("  updated:   %d\n", sum.Updated)
	fmt.Printf("  skipped:   %d\n", sum.Skipped)
	fmt.Printf("  errors:    %d\n", len(sum.Errors))
	fmt.Printf("  processed: %d\n", sum.Processed())
	for _, e := range sum.Errors {
		fmt.Printf("    %v\n", e)
	}
	if sum.DryRun {
		fmt.Println("dry run: no changes were saved")
	}
}
