// Package alerts creates hazard alerts and answers client queries about them.
package alerts

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-shelter-alerts/internal/events"
	"github.com/mr1hm/go-shelter-alerts/internal/geo"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
	"github.com/mr1hm/go-shelter-alerts/internal/observability"
	"github.com/mr1hm/go-shelter-alerts/internal/repository"
	"github.com/mr1hm/go-shelter-alerts/internal/verification"
)

const (
	MinRadiusM          = 1
	MaxRadiusM          = 50000
	DefaultValidMinutes = 60
	MaxValidMinutes     = 1440
	DefaultSource       = "simulation"
)

var ErrValidation = errors.New("invalid alert")

// NewAlert is the input for Create. Zero Severity, ValidMinutes and Source
// take their defaults.
type NewAlert struct {
	HazardType   string
	Severity     string
	CenterLat    float64
	CenterLon    float64
	RadiusM      int
	ValidMinutes int
	Source       string
	CreatedBy    string
	Official     bool
}

type Store interface {
	CreateAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context, opts repository.AlertFilter) ([]models.Alert, error)
}

// Nearby is a live alert whose area contains the query point.
type Nearby struct {
	Alert      models.Alert
	DistanceKm float64
}

type Service struct {
	store     Store
	publisher events.Publisher
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func NewService(store Store, publisher events.Publisher, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{
		store:     store,
		publisher: publisher,
		clock:     clock,
		metrics:   metrics,
		logger:    logger.With("component", "alerts"),
	}
}

// Create validates and stores a new alert, then publishes alert.created.
func (s *Service) Create(ctx context.Context, in NewAlert) (*models.Alert, error) {
	a, err := s.build(in)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("error creating alert: %w", err)
	}

	s.metrics.AlertsCreated.WithLabelValues(string(a.Status)).Inc()
	s.logger.InfoContext(ctx, "alert created",
		"alert_id", a.ID, "hazard_type", a.HazardType, "severity", a.Severity,
		"status", a.Status, "radius_m", a.RadiusM, "official", a.Official)

	s.publisher.Publish(ctx, events.Event{Kind: events.KindAlertCreated, Alert: *a, At: a.CreatedAt})
	return a, nil
}

func (s *Service) build(in NewAlert) (*models.Alert, error) {
	hazard, err := models.ParseHazardType(in.HazardType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	severity := models.SeverityMedium
	if in.Severity != "" {
		if severity, err = models.ParseSeverity(in.Severity); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	if math.IsNaN(in.CenterLat) || in.CenterLat < -90 || in.CenterLat > 90 {
		return nil, fmt.Errorf("%w: latitude must be between -90 and 90", ErrValidation)
	}
	if math.IsNaN(in.CenterLon) || in.CenterLon < -180 || in.CenterLon > 180 {
		return nil, fmt.Errorf("%w: longitude must be between -180 and 180", ErrValidation)
	}
	if in.RadiusM < MinRadiusM || in.RadiusM > MaxRadiusM {
		return nil, fmt.Errorf("%w: radius_m must be between %d and %d", ErrValidation, MinRadiusM, MaxRadiusM)
	}

	minutes := in.ValidMinutes
	if minutes == 0 {
		minutes = DefaultValidMinutes
	}
	if minutes < 1 || minutes > MaxValidMinutes {
		return nil, fmt.Errorf("%w: valid_minutes must be between 1 and %d", ErrValidation, MaxValidMinutes)
	}

	source := in.Source
	if source == "" {
		source = DefaultSource
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: source cannot be blank", ErrValidation)
	}

	now := s.clock.Now().UTC().Truncate(time.Millisecond)
	return &models.Alert{
		ID:         uuid.NewString(),
		HazardType: hazard,
		Severity:   severity,
		CenterLat:  in.CenterLat,
		CenterLon:  in.CenterLon,
		RadiusM:    in.RadiusM,
		ValidUntil: now.Add(time.Duration(minutes) * time.Minute),
		Source:     source,
		CreatedBy:  in.CreatedBy,
		Status:     verification.InitialStatus(in.CreatedBy, in.Official),
		Official:   in.Official,
		CreatedAt:  now,
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Alert, error) {
	return s.store.GetAlert(ctx, id)
}

// Live returns every alert that is live now.
func (s *Service) Live(ctx context.Context) ([]models.Alert, error) {
	now := s.clock.Now()
	list, err := s.store.ListAlerts(ctx, repository.AlertFilter{LiveAt: &now})
	if err != nil {
		return nil, fmt.Errorf("error listing live alerts: %w", err)
	}
	return list, nil
}

// Active returns live alerts covering point, most severe first, then nearest.
func (s *Service) Active(ctx context.Context, point models.Coordinates) ([]Nearby, error) {
	live, err := s.Live(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Nearby, 0, len(live))
	for _, a := range live {
		km := geo.HaversineKm(point.Latitude, point.Longitude, a.CenterLat, a.CenterLon)
		if km*1000 <= float64(a.RadiusM) {
			out = append(out, Nearby{Alert: a, DistanceKm: math.Round(km*1000) / 1000})
		}
	}

	slices.SortStableFunc(out, func(x, y Nearby) int {
		if c := cmp.Compare(x.Alert.Severity.Rank(), y.Alert.Severity.Rank()); c != 0 {
			return c
		}
		return cmp.Compare(x.DistanceKm, y.DistanceKm)
	})
	return out, nil
}
