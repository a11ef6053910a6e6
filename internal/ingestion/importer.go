package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

type Store interface {
	ImportShelters(ctx context.Context, shelters []models.Shelter) (created, updated int, err error)
}

type Summary struct {
	Created int
	Updated int
	Valid   int // rows that parsed; equals Created+Updated unless DryRun
	Skipped int
	Errors  []RowError
	DryRun  bool
}

func (s *Summary) Processed() int {
	return s.Valid + s.Skipped + len(s.Errors)
}

type Importer struct {
	store  Store
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewImporter(store Store, clock clockwork.Clock, logger *slog.Logger) *Importer {
	return &Importer{store: store, clock: clock, logger: logger.With("component", "ingestion")}
}

// Import loads shelters from location. With dryRun set the file is parsed and
// validated but nothing is written.
func (im *Importer) Import(ctx context.Context, location string, dryRun bool) (*Summary, error) {
	r, err := Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	batch, err := ParseShelters(r, im.clock.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", location, err)
	}
	for _, e := range batch.Errors {
		im.logger.WarnContext(ctx, "rejected shelter row", "row", e.Row, "error", e.Err)
	}

	sum := &Summary{
		Valid:   len(batch.Shelters),
		Skipped: batch.Skipped,
		Errors:  batch.Errors,
		DryRun:  dryRun,
	}
	if dryRun || len(batch.Shelters) == 0 {
		im.logger.InfoContext(ctx, "shelter import parsed", "location", location, "valid", sum.Valid, "skipped", sum.Skipped, "errors", len(sum.Errors), "dry_run", dryRun)
		return sum, nil
	}

	sum.Created, sum.Updated, err = im.store.ImportShelters(ctx, batch.Shelters)
	if err != nil {
		return nil, fmt.Errorf("error importing shelters: %w", err)
	}
	im.logger.InfoContext(ctx, "shelter import complete",
		"location", location, "created", sum.Created, "updated", sum.Updated,
		"skipped", sum.Skipped, "errors", len(sum.Errors))
	return sum, nil
}
