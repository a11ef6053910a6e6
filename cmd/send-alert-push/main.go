// Command send-alert-push runs one synchronous fan-out for a stored alert and
// prints the delivery summary. It ignores the dispatch claim, so it can be
// used to resend an alert that was already dispatched.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mr1hm/go-shelter-alerts/internal/config"
	"github.com/mr1hm/go-shelter-alerts/internal/fanout"
	"github.com/mr1hm/go-shelter-alerts/internal/logging"
	"github.com/mr1hm/go-shelter-alerts/internal/observability"
	"github.com/mr1hm/go-shelter-alerts/internal/push"
	"github.com/mr1hm/go-shelter-alerts/internal/repository"
	"github.com/mr1hm/go-shelter-alerts/internal/shelter"
	"github.com/mr1hm/go-shelter-alerts/internal/verification"
)

func main() {
	alertID := flag.String("alert", "", "id of the alert to send")
	force := flag.Bool("force", false, "send even if the alert is not verified or active")
	flag.Parse()
	if *alertID == "" && flag.NArg() > 0 {
		*alertID = flag.Arg(0)
	}
	if *alertID == "" {
		fmt.Fprintln(os.Stderr, "usage: send-alert-push [-force] -alert <id>")
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	alert, err := db.GetAlert(ctx, *alertID)
	if errors.Is(err, repository.ErrNotFound) {
		logging.Fatalf("Alert %s not found", *alertID)
	}
	if err != nil {
		logging.Fatalf("Failed to load alert: %v", err)
	}

	now := time.Now()
	if !now.Before(alert.ValidUntil) {
		logging.Fatalf("Alert %s expired at %s", alert.ID, alert.ValidUntil.UTC())
	}
	if !verification.IsLive(alert, now) && !*force {
		logging.Fatalf("Alert %s is %s; pass -force to send anyway", alert.ID, alert.Status)
	}

	gateway, err := push.New(cfg.Push, logger)
	if err != nil {
		logging.Fatalf("Failed to initialize push gateway: %v", err)
	}

	pipeline := fanout.NewPipeline(db, shelter.NewLocator(db), gateway, fanout.Options{
		Workers:         cfg.Fanout.Workers,
		SendTimeout:     cfg.Fanout.SendTimeout,
		ShelterSearchKm: cfg.Fanout.ShelterSearchKm,
	}, observability.NewMetricsWithRegistry(prometheus.NewRegistry()), logger)

	res, runErr := pipeline.OnAlertCreated(ctx, alert)
	if res != nil {
		printSummary(res)
	}
	if runErr != nil {
		logging.Fatalf("Fanout failed: %v", runErr)
	}
}

func printSummary(res *fanout.Result) {
	fmt.Printf("alert %s\n", res.AlertID)
	fmt.Printf("  candidates:    %d\n", res.Candidates)
	fmt.Printf("  affected:      %d\n", res.Affected())
	fmt.Printf("  sent:          %d\n", res.Sent())
	fmt.Printf("  failed:        %d\n", res.Failed())
	fmt.Printf("  no shelter:    %d\n", res.NoShelter())
	fmt.Printf("  not attempted: %d\n", res.NotAttempted())
	if res.Partial {
		fmt.Println("  result is partial")
	}
}
