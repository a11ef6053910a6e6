package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-shelter-alerts/internal/fanout"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
	"github.com/mr1hm/go-shelter-alerts/internal/worker"
)

// TriggerPolicy decides which events start a fan-out run.
type TriggerPolicy int

const (
	// TriggerWhenLive fans out live alerts at creation and community alerts
	// once votes verify them.
	TriggerWhenLive TriggerPolicy = iota
	// TriggerOnCreate fans out every new alert at creation, PENDING included,
	// and ignores later verification.
	TriggerOnCreate
)

func (p TriggerPolicy) String() string {
	if p == TriggerOnCreate {
		return "on_create"
	}
	return "when_live"
}

// Triggers reports whether e should start a fan-out under this policy. The
// alert must not have expired.
func (p TriggerPolicy) Triggers(e Event) bool {
	if !e.At.Before(e.Alert.ValidUntil) {
		return false
	}
	switch e.Kind {
	case KindAlertCreated:
		if p == TriggerOnCreate {
			return e.Alert.Status != models.StatusRejected
		}
		return e.Alert.Status.Live()
	case KindAlertVerified:
		return p == TriggerWhenLive
	}
	return false
}

type FanoutRunner interface {
	OnAlertCreated(ctx context.Context, alert *models.Alert) (*fanout.Result, error)
}

// DispatchClaimer records that an alert has been handed to fan-out.
type DispatchClaimer interface {
	MarkDispatched(ctx context.Context, id string, at time.Time) (bool, error)
}

// ResultSink receives every completed fan-out result.
type ResultSink interface {
	PublishFanout(ctx context.Context, res *fanout.Result)
}

type Dispatcher struct {
	runner  FanoutRunner
	claims  DispatchClaimer
	policy  TriggerPolicy
	sink    ResultSink
	workers int
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewDispatcher builds a dispatcher. sink may be nil.
func NewDispatcher(runner FanoutRunner, claims DispatchClaimer, policy TriggerPolicy, sink ResultSink, workers int, clock clockwork.Clock, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		runner:  runner,
		claims:  claims,
		policy:  policy,
		sink:    sink,
		workers: workers,
		clock:   clock,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Run consumes events until the channel is closed, then waits for in-flight
// fan-out runs. Cancelling ctx abandons queued runs.
func (d *Dispatcher) Run(ctx context.Context, events <-chan Event) {
	pool := worker.NewPool(d.workers, d.workers, d.handle)
	pool.Start(ctx)

	for e := range events {
		if !d.policy.Triggers(e) {
			d.logger.DebugContext(ctx, "event does not trigger fanout",
				"kind", e.Kind, "alert_id", e.Alert.ID, "status", e.Alert.Status, "policy", d.policy)
			continue
		}
		if err := pool.SubmitContext(ctx, e); err != nil {
			d.logger.WarnContext(ctx, "dropping event after shutdown", "kind", e.Kind, "alert_id", e.Alert.ID)
		}
	}

	pool.Stop()
}

func (d *Dispatcher) handle(ctx context.Context, e Event) error {
	claimed, err := d.claims.MarkDispatched(ctx, e.Alert.ID, d.clock.Now())
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to claim alert for fanout", "alert_id", e.Alert.ID, "error", err)
		return err
	}
	if !claimed {
		d.logger.InfoContext(ctx, "alert already dispatched", "alert_id", e.Alert.ID, "kind", e.Kind)
		return nil
	}

	alert := e.Alert
	res, err := d.runner.OnAlertCreated(ctx, &alert)
	if res == nil {
		res = &fanout.Result{AlertID: alert.ID}
	}
	if err != nil {
		d.logger.ErrorContext(ctx, "fanout run failed",
			"alert_id", alert.ID, "sent", res.Sent(), "affected", res.Affected(), "error", err)
	}
	if d.sink != nil {
		d.sink.PublishFanout(ctx, res)
	}
	return err
}
