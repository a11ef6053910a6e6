// Package fanout notifies every device inside an alert's radius and points
// it to the nearest open shelter.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mr1hm/go-shelter-alerts/internal/geo"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
	"github.com/mr1hm/go-shelter-alerts/internal/observability"
	"github.com/mr1hm/go-shelter-alerts/internal/push"
	"github.com/mr1hm/go-shelter-alerts/internal/shelter"
	"github.com/mr1hm/go-shelter-alerts/internal/worker"
)

const (
	DefaultWorkers     = 8
	DefaultSendTimeout = 10 * time.Second
)

type DeviceStore interface {
	FindWithPushTokenAndPosition(ctx context.Context) ([]models.Device, error)
}

// ShelterSource returns the open shelters around a point. *shelter.Locator satisfies it.
type ShelterSource interface {
	Candidates(ctx context.Context, point models.Coordinates, radiusKm float64) ([]models.Shelter, error)
}

type Options struct {
	Workers         int
	SendTimeout     time.Duration
	ShelterSearchKm float64 // added to the alert radius when prefetching shelters
}

type Pipeline struct {
	devices  DeviceStore
	shelters ShelterSource
	gateway  push.Gateway
	opts     Options
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func NewPipeline(devices DeviceStore, shelters ShelterSource, gateway push.Gateway, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.ShelterSearchKm <= 0 {
		opts.ShelterSearchKm = shelter.DefaultSearchRadiusKm
	}
	return &Pipeline{
		devices:  devices,
		shelters: shelters,
		gateway:  gateway,
		opts:     opts,
		metrics:  metrics,
		logger:   logger.With("component", "fanout"),
	}
}

// OnAlertCreated runs one fan-out for alert. Per-device failures are recorded
// in the result. A non-nil error means a collaborator was unavailable or ctx
// ended; the returned result still reports what was delivered before that.
func (p *Pipeline) OnAlertCreated(ctx context.Context, alert *models.Alert) (*Result, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "fanout.run",
		attribute.String("alert.id", alert.ID),
		attribute.String("alert.hazard_type", string(alert.HazardType)),
	)
	defer span.End()

	res, err := p.run(ctx, alert)

	outcome := "complete"
	switch {
	case err != nil && res.Affected() == 0:
		outcome = "error"
	case res.Partial:
		outcome = "partial"
	}
	p.metrics.FanoutRuns.WithLabelValues(outcome).Inc()
	p.metrics.FanoutDuration.Observe(time.Since(start).Seconds())
	p.metrics.AffectedDevices.Observe(float64(res.Affected()))
	for _, d := range res.Devices {
		p.metrics.Dispatches.WithLabelValues(string(d.Outcome)).Inc()
	}

	span.SetAttributes(
		attribute.Int("fanout.candidates", res.Candidates),
		attribute.Int("fanout.affected", res.Affected()),
		attribute.Int("fanout.sent", res.Sent()),
		attribute.Int("fanout.failed", res.Failed()),
		attribute.Bool("fanout.partial", res.Partial),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	p.logger.InfoContext(ctx, "alert fanout completed",
		"alert_id", alert.ID,
		"candidates", res.Candidates,
		"affected", res.Affected(),
		"sent", res.Sent(),
		"failed", res.Failed(),
		"no_shelter", res.NoShelter(),
		"not_attempted", res.NotAttempted(),
		"partial", res.Partial,
		"duration", time.Since(start),
	)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, alert *models.Alert) (*Result, error) {
	res := &Result{AlertID: alert.ID}

	devices, err := p.devices.FindWithPushTokenAndPosition(ctx)
	if err != nil {
		return res, fmt.Errorf("error fetching devices: %w", err)
	}
	res.Candidates = len(devices)

	center := alert.Center()
	for _, d := range devices {
		pos, ok := d.Position()
		if !ok || d.PushToken == "" {
			continue
		}
		km := geo.HaversineKm(pos.Latitude, pos.Longitude, center.Latitude, center.Longitude)
		if km*1000 <= float64(alert.RadiusM) {
			res.Devices = append(res.Devices, DeviceResult{
				DeviceID:   d.DeviceID,
				DistanceKm: km,
				Outcome:    OutcomeNotAttempted,
			})
		}
	}
	if len(res.Devices) == 0 {
		p.logger.DebugContext(ctx, "no devices inside alert radius", "alert_id", alert.ID, "radius_m", alert.RadiusM)
		return res, nil
	}

	shelters, err := p.shelters.Candidates(ctx, center, alert.RadiusKm()+p.opts.ShelterSearchKm)
	if err != nil {
		res.Partial = true
		return res, fmt.Errorf("error prefetching shelters: %w", err)
	}

	tokens := make(map[string]string, len(devices))
	positions := make(map[string]models.Coordinates, len(devices))
	for _, d := range devices {
		if pos, ok := d.Position(); ok {
			tokens[d.DeviceID] = d.PushToken
			positions[d.DeviceID] = pos
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &collector{results: res.Devices}
	pool := worker.NewPool(min(p.opts.Workers, len(res.Devices)), len(res.Devices), func(ctx context.Context, i int) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		dr := c.get(i)
		p.dispatch(ctx, alert, &dr, tokens[dr.DeviceID], positions[dr.DeviceID], shelters)
		c.set(i, dr)
		if errors.Is(dr.Err, push.ErrUnavailable) {
			c.abort(dr.Err)
			cancel()
		}
		return dr.Err
	})
	pool.Start(runCtx)
	for i := range res.Devices {
		pool.Submit(i)
	}
	pool.Stop()

	abortErr := c.abortErr()
	if abortErr == nil {
		abortErr = ctx.Err()
	}
	res.Partial = abortErr != nil || res.NotAttempted() > 0
	if abortErr != nil {
		return res, fmt.Errorf("fanout aborted after %d sends: %w", res.Sent(), abortErr)
	}
	return res, nil
}

// dispatch resolves the nearest shelter for one device and sends its notification.
func (p *Pipeline) dispatch(ctx context.Context, alert *models.Alert, dr *DeviceResult, token string, pos models.Coordinates, shelters []models.Shelter) {
	nearest, ok := shelter.Nearest(pos, shelters)
	if !ok {
		dr.Outcome = OutcomeNoShelter
		p.logger.WarnContext(ctx, "no open shelter for device", "alert_id", alert.ID, "device_id", dr.DeviceID)
		return
	}
	sh := nearest.Shelter
	dr.Shelter = &sh
	dr.ShelterDistanceKm = nearest.DistanceKm
	dr.ETASeconds = nearest.ETASeconds

	sendCtx, cancel := context.WithTimeout(ctx, p.opts.SendTimeout)
	defer cancel()
	sendCtx, span := observability.StartSpan(sendCtx, "push.send", attribute.String("device.id", dr.DeviceID))
	defer span.End()

	start := time.Now()
	err := p.gateway.Send(sendCtx, BuildMessage(token, alert, nearest))
	p.metrics.PushSendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		dr.Outcome = OutcomeFailed
		dr.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.WarnContext(ctx, "push delivery failed", "alert_id", alert.ID, "device_id", dr.DeviceID, "error", err)
		return
	}
	dr.Outcome = OutcomeSent
}

// collector guards the per-device results shared by the workers.
type collector struct {
	mu      sync.Mutex
	results []DeviceResult
	err     error
}

func (c *collector) get(i int) DeviceResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[i]
}

func (c *collector) set(i int, dr DeviceResult) {
	c.mu.Lock()
	c.results[i] = dr
	c.mu.Unlock()
}

func (c *collector) abort(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *collector) abortErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
